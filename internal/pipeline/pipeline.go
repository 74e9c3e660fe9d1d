package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
	"github.com/sells-group/ordersync/internal/monitoring"
	"github.com/sells-group/ordersync/internal/parser"
	"github.com/sells-group/ordersync/internal/store"
)

// LLM is the full model surface the pipeline needs. extract.Service
// implements it.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ExtractJSON(ctx context.Context, prompt string) (model.Row, error)
	MatchCandidate(ctx context.Context, desc string, candidates []model.Row) (model.Row, error)
	MatchReturnCandidate(ctx context.Context, desc string, candidates []model.Row) (model.Row, error)
}

// Processor runs a message through classification, routing, extraction, and
// reconciliation. One Processor serves all workers; it holds no per-message
// state.
type Processor struct {
	store      store.Store
	llm        LLM
	prompts    extract.PromptSet
	classifier *Classifier
	matcher    *Matcher
	metrics    *monitoring.Collector
}

// New builds a Processor. metrics may be nil.
func New(st store.Store, llm LLM, prompts extract.PromptSet, metrics *monitoring.Collector) *Processor {
	return &Processor{
		store:      st,
		llm:        llm,
		prompts:    prompts,
		classifier: NewClassifier(llm, prompts),
		matcher:    NewMatcher(st, llm),
		metrics:    metrics,
	}
}

// Process handles one message end to end and returns its reconciliation
// stats. An error means extraction or matching failed and the message should
// be considered unprocessed; store write failures are absorbed into the
// stats instead.
func (p *Processor) Process(ctx context.Context, msg *model.Message) (Stats, error) {
	start := time.Now()
	log := zap.L().With(
		zap.Int64("message_id", msg.ID),
		zap.String("trace_id", uuid.NewString()))

	body := parser.ToPlainText(msg.Body)

	category := p.classifier.Classify(ctx, msg)
	if msg.Category == "" {
		// Persist the label so re-runs and the stats endpoint see it.
		if _, err := p.store.UpdateRows(ctx, store.TableMessages,
			[]store.Filter{store.Eq("id", msg.ID)},
			model.Row{"category": string(category)}); err != nil {
			log.Warn("persisting category failed", zap.Error(err))
		}
	}

	action := Route(string(category))
	p.metrics.Routed(action.String())
	log = log.With(
		zap.String("category", string(category)),
		zap.String("action", action.String()))

	var (
		stats Stats
		err   error
	)
	switch action {
	case ActionOrder:
		stats, err = p.processOrder(ctx, msg, body)
	case ActionRefund:
		stats, err = p.processReturns(ctx, msg, body, p.prompts.Refund)
	case ActionShipping:
		stats, err = p.processShipping(ctx, msg, body)
	case ActionShippingUpdate:
		stats, err = p.processShippingUpdate(ctx, msg, body)
	case ActionReturnUpdate:
		stats, err = p.processReturns(ctx, msg, body, p.prompts.ReturnUpdate)
	case ActionReturnConfirmation:
		stats, err = p.processReturns(ctx, msg, body, p.prompts.ReturnConfirmation)
	default:
		p.metrics.Processed(0, 0, 0)
		log.Debug("message skipped")
		return Stats{}, nil
	}
	if err != nil {
		p.metrics.Failed()
		return stats, err
	}

	p.metrics.Processed(stats.Updated, stats.Inserted, stats.Skipped)
	log.Info("message processed",
		zap.Int64("updated", stats.Updated),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
		zap.Duration("took", time.Since(start)))
	return stats, nil
}
