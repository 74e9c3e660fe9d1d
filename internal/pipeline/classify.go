package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/ordersync/internal/extract"
	"github.com/sells-group/ordersync/internal/model"
)

// Completer is the short-answer model call the classifier needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier assigns a category label to a message, either by trusting a
// label already present on the record or by asking the model.
type Classifier struct {
	llm     Completer
	prompts extract.PromptSet
}

func NewClassifier(llm Completer, prompts extract.PromptSet) *Classifier {
	return &Classifier{llm: llm, prompts: prompts}
}

// Classify returns the message's category. A classification failure is not
// fatal: the message falls back to the unknown label and routes to a no-op.
func (c *Classifier) Classify(ctx context.Context, msg *model.Message) model.Category {
	if label := normalizeLabel(msg.Category); label != "" {
		return model.Category(label)
	}

	reply, err := c.llm.Complete(ctx, c.prompts.BuildClassification(msg.From, msg.Subject, msg.Body))
	if err != nil {
		zap.L().Warn("classification failed",
			zap.Int64("message_id", msg.ID),
			zap.Error(err))
		return model.CategoryUnknown
	}

	// Model replies are snapped to the fixed taxonomy; anything off-menu is
	// unknown. Labels already stored on the record skip this gate, since
	// upstream ingestion may use freer wording the router still understands.
	label := model.Category(normalizeLabel(reply))
	if !label.Known() {
		zap.L().Debug("unrecognized category label",
			zap.Int64("message_id", msg.ID),
			zap.String("label", string(label)))
		return model.CategoryUnknown
	}
	return label
}

// normalizeLabel lowercases a model reply and strips the quoting and
// punctuation models like to wrap single-word answers in.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, "\"'.` ")
}
