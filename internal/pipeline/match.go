package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/parser"
	"github.com/sells-group/ordersync/internal/store"
)

// Field binds one item payload key to the store column it filters on.
type Field struct {
	Key    string
	Column string
	Op     store.Op
}

// Tier is one level of the candidate cascade. A tier is eligible only when
// the item carries a value for every field in it; filtering on a blank value
// would select most of the table.
type Tier []Field

// SemanticMode selects the model fallback used when deterministic narrowing
// leaves more than one candidate.
type SemanticMode int

const (
	// SemanticOff gives up on ambiguity.
	SemanticOff SemanticMode = iota
	// SemanticPlain accepts the model's row as long as it names a known
	// entry id.
	SemanticPlain
	// SemanticReturns requires the model's row to be one of the candidates
	// and returns the stored copy.
	SemanticReturns
)

// MatchConfig describes how one node resolves an item against its table.
type MatchConfig struct {
	Table    string
	Tiers    []Tier
	Semantic SemanticMode

	// Keys of the description, color, and size fields used by the
	// deterministic narrowing pass.
	DescKey  string
	ColorKey string
	SizeKey  string
}

// CandidateMatcher is the model-backed disambiguation the matcher falls back
// to when deterministic narrowing is not decisive.
type CandidateMatcher interface {
	MatchCandidate(ctx context.Context, desc string, candidates []model.Row) (model.Row, error)
	MatchReturnCandidate(ctx context.Context, desc string, candidates []model.Row) (model.Row, error)
}

// Matcher resolves extracted items to stored rows through a tiered filter
// cascade.
type Matcher struct {
	store store.Store
	llm   CandidateMatcher
}

func NewMatcher(st store.Store, llm CandidateMatcher) *Matcher {
	return &Matcher{store: st, llm: llm}
}

// Resolve walks the tiers in order and returns the matched row, or nil when
// nothing matched. A populated tier does not end the cascade: when none of
// its candidates passes the consistency check or the semantic fallback, the
// next, looser tier is still consulted.
func (m *Matcher) Resolve(ctx context.Context, cfg MatchConfig, item model.Row) (model.Row, error) {
	for i, tier := range cfg.Tiers {
		if !tierEligible(item, tier) {
			continue
		}

		filters := make([]store.Filter, len(tier))
		for j, f := range tier {
			filters[j] = store.Filter{Field: f.Column, Op: f.Op, Value: item.String(f.Key)}
		}

		cands, err := m.store.SelectRows(ctx, cfg.Table, filters)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			continue
		}
		zap.L().Debug("match tier hit",
			zap.String("table", cfg.Table),
			zap.Int("tier", i),
			zap.Int("candidates", len(cands)))

		match, err := m.pick(ctx, cfg, item, cands)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}
	return nil, nil
}

// pick selects one row from a tier's candidates. Every candidate, including a
// lone one, must pass the deterministic consistency check; the first
// consistent row wins in store order. The semantic fallback runs only when no
// candidate survives.
func (m *Matcher) pick(ctx context.Context, cfg MatchConfig, item model.Row, cands []model.Row) (model.Row, error) {
	if narrowed := narrowDeterministic(cfg, item, cands); len(narrowed) > 0 {
		return narrowed[0], nil
	}

	desc := item.String(cfg.DescKey)
	var (
		match model.Row
		err   error
	)
	switch cfg.Semantic {
	case SemanticPlain:
		match, err = m.llm.MatchCandidate(ctx, desc, cands)
	case SemanticReturns:
		match, err = m.llm.MatchReturnCandidate(ctx, desc, cands)
	default:
		return nil, nil
	}
	if err != nil {
		// Semantic failure is not fatal; the tier is treated as unmatched
		// and the cascade moves on.
		zap.L().Warn("semantic match failed",
			zap.String("table", cfg.Table),
			zap.Error(err))
		return nil, nil
	}
	return match, nil
}

func tierEligible(item model.Row, tier Tier) bool {
	for _, f := range tier {
		if !item.Has(f.Key) {
			return false
		}
	}
	return true
}

// narrowDeterministic keeps the candidates whose description, color, and
// size are consistent with the item's. Color and size fall back to values
// parsed out of the description when the item has no dedicated field.
func narrowDeterministic(cfg MatchConfig, item model.Row, cands []model.Row) []model.Row {
	base, parsedColor, parsedSize := parser.ParseItemDetails(item.String(cfg.DescKey))
	color := item.String(cfg.ColorKey)
	if color == "" {
		color = parsedColor
	}
	size := item.String(cfg.SizeKey)
	if size == "" {
		size = parsedSize
	}
	if base == "" && color == "" && size == "" {
		return cands
	}

	var kept []model.Row
	for _, c := range cands {
		if candidateConsistent(cfg, c, base, color, size) {
			kept = append(kept, c)
		}
	}
	return kept
}

func candidateConsistent(cfg MatchConfig, cand model.Row, base, color, size string) bool {
	desc := strings.ToLower(cand.String(cfg.DescKey))
	if base != "" && !textContains(desc, strings.ToLower(base)) {
		return false
	}
	if color != "" && !fieldConsistent(cand, cfg.ColorKey, desc, color) {
		return false
	}
	if size != "" && !fieldConsistent(cand, cfg.SizeKey, desc, size) {
		return false
	}
	return true
}

// fieldConsistent checks a color or size value against the candidate's
// dedicated column when present, otherwise against its description.
func fieldConsistent(cand model.Row, key, desc, want string) bool {
	want = strings.ToLower(want)
	if cand.Has(key) {
		return strings.Contains(strings.ToLower(cand.String(key)), want) ||
			strings.Contains(want, strings.ToLower(cand.String(key)))
	}
	return strings.Contains(desc, want)
}

// textContains reports whether hay contains needle either as a whole
// substring or token by token, so "hoodie, blue" still matches
// "Blue Cotton Hoodie".
func textContains(hay, needle string) bool {
	if strings.Contains(hay, needle) {
		return true
	}
	tokens := strings.FieldsFunc(needle, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}
