package storage

import (
	"context"

	"github.com/xaenox/mailpilot-bot/internal/models"
)

// TokenKey is the fixed key the bearer token is persisted under.
const TokenKey = "auth_token"

type Storage interface {
	TokenStore
	TranscriptStore
	Close() error
}

// TokenStore persists the single process-wide bearer token.
// Token returns "" with a nil error when no token is stored.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// TranscriptStore keeps a copy of every chat's transcript.
type TranscriptStore interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	// GetMessages returns up to limit of the chat's latest messages, oldest first.
	GetMessages(ctx context.Context, chatID int64, limit int) ([]*models.Message, error)
}
