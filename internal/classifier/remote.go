package classifier

import (
	"context"
	"fmt"

	"github.com/xaenox/mailpilot-bot/internal/models"
)

// CommandParser is the backend's parse-command endpoint.
type CommandParser interface {
	ParseCommand(ctx context.Context, text string) (*models.ParsedCommand, error)
}

// RemoteClassifier delegates to the backend classifier.
type RemoteClassifier struct {
	parser CommandParser
}

func NewRemoteClassifier(parser CommandParser) *RemoteClassifier {
	return &RemoteClassifier{parser: parser}
}

func (c *RemoteClassifier) Classify(ctx context.Context, text string) (models.ParsedCommand, error) {
	parsed, err := c.parser.ParseCommand(ctx, text)
	if err != nil {
		return models.ParsedCommand{}, fmt.Errorf("remote classification failed: %w", err)
	}

	cmd := *parsed
	if !cmd.Action.Known() {
		cmd.Action = models.ActionUnknown
	}
	return cmd, nil
}
