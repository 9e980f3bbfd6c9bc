package classifier

import (
	"context"
	"strings"

	"github.com/xaenox/mailpilot-bot/internal/api"
	"github.com/xaenox/mailpilot-bot/internal/models"
	"go.uber.org/zap"
)

// DefaultMinConfidence is the score a primary result must exceed to be trusted.
const DefaultMinConfidence = 0.5

// Fallback trusts primary only when it answers with confidence above
// minConfidence, and asks secondary otherwise. A trusted answer that misses
// the email target, or reads "send reply" as "generate replies", is
// corrected with the rule patterns.
type Fallback struct {
	primary       Classifier
	secondary     Classifier
	minConfidence float64
	logger        *zap.Logger
}

func NewFallback(primary, secondary Classifier, minConfidence float64, logger *zap.Logger) *Fallback {
	return &Fallback{
		primary:       primary,
		secondary:     secondary,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

func (f *Fallback) Classify(ctx context.Context, text string) (models.ParsedCommand, error) {
	cmd, err := f.primary.Classify(ctx, text)
	if err == nil && cmd.Confidence > f.minConfidence {
		return f.correct(ctx, text, cmd), nil
	}

	if api.IsAuthError(err) {
		// Every backend call after this fails the same way.
		return models.ParsedCommand{}, err
	}

	if err != nil {
		f.logger.Warn("Primary classifier failed, falling back", zap.Error(err))
	} else {
		f.logger.Debug("Primary classifier not confident, falling back",
			zap.String("action", string(cmd.Action)),
			zap.Float64("confidence", cmd.Confidence))
	}
	return f.secondary.Classify(ctx, text)
}

// correct patches the gaps keyword-level parsers leave: "reply" alone maps to
// generate_replies, and delete or send come back without a target.
func (f *Fallback) correct(ctx context.Context, text string, cmd models.ParsedCommand) models.ParsedCommand {
	lower := strings.ToLower(text)

	switch cmd.Action {
	case models.ActionGenerateReplies:
		ruled, err := NewRuleClassifier().Classify(ctx, text)
		if err == nil && ruled.Action == models.ActionSendReply {
			f.logger.Debug("Reading generate_replies as send_reply")
			return ruled
		}
	case models.ActionSendReply:
		if !cmd.Parameters.HasTarget() {
			cmd.Parameters.EmailNumber = emailNumber(text)
		}
	case models.ActionDeleteEmail:
		if !cmd.Parameters.HasTarget() {
			count := cmd.Parameters.Count
			cmd.Parameters = deleteParameters(text, lower)
			cmd.Parameters.Count = count
		}
	}
	return cmd
}
