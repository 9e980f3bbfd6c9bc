package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/mailpilot-bot/internal/api"
	"github.com/xaenox/mailpilot-bot/internal/classifier"
	"github.com/xaenox/mailpilot-bot/internal/models"
	"go.uber.org/zap"
)

// ErrBusy is returned when a turn arrives while the previous one is still
// waiting on the backend.
var ErrBusy = errors.New("still working on the previous command")

// DefaultCategorizeCount is how many emails categorize_inbox asks for when
// the command names no count.
const DefaultCategorizeCount = 20

// Backend is the email-processing API the handlers drive.
type Backend interface {
	ReadEmails(ctx context.Context) ([]models.EmailSummary, error)
	GenerateReplies(ctx context.Context, emails []models.EmailSummary) ([]string, error)
	SendReply(ctx context.Context, emailID, content string) error
	DeleteEmail(ctx context.Context, criterion models.DeleteCriterion) error
	Categorize(ctx context.Context, count int) (*models.CategorizeResult, error)
	DailyDigest(ctx context.Context) (*models.Digest, error)
}

// Conversation is one chat's state: the transcript, the cache of the last
// read, and the single pending deletion. All of it changes only through
// Handle.
type Conversation struct {
	chatID          int64
	backend         Backend
	classifier      classifier.Classifier
	categorizeCount int
	logger          *zap.Logger

	busy atomic.Bool

	mu         sync.Mutex
	transcript []models.Message
	emails     []models.EmailSummary
	pending    *models.DeleteCriterion

	// authErr is set when the turn failed because the session is gone.
	authErr error
}

func NewConversation(chatID int64, backend Backend, clf classifier.Classifier, categorizeCount int, logger *zap.Logger) *Conversation {
	if categorizeCount <= 0 {
		categorizeCount = DefaultCategorizeCount
	}
	return &Conversation{
		chatID:          chatID,
		backend:         backend,
		classifier:      clf,
		categorizeCount: categorizeCount,
		logger:          logger.With(zap.Int64("chat_id", chatID)),
	}
}

// Handle runs one user turn and returns the messages it appended, starting
// with the user's own. When the turn failed because the session is gone the
// messages come back together with that error, so callers can ask the user
// to sign in again.
func (c *Conversation) Handle(ctx context.Context, text string) ([]models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	start := c.length()
	c.append(models.RoleUser, text)

	if strings.Contains(strings.ToLower(text), confirmPhrase) {
		c.confirmDelete(ctx)
	} else {
		c.dispatch(ctx, text)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.authErr
	c.authErr = nil
	return append([]models.Message(nil), c.transcript[start:]...), err
}

// Busy reports whether a turn is in flight.
func (c *Conversation) Busy() bool {
	return c.busy.Load()
}

// Welcome appends the greeting that lists the supported commands. Like a
// turn, it is refused with ErrBusy while another turn is running.
func (c *Conversation) Welcome(name string) (models.Message, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return models.Message{}, ErrBusy
	}
	defer c.busy.Store(false)
	return c.append(models.RoleSystem, welcomeText(name)), nil
}

func (c *Conversation) Transcript() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.transcript...)
}

func (c *Conversation) Emails() []models.EmailSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.EmailSummary(nil), c.emails...)
}

// PendingDeletion returns the staged criterion, or nil.
func (c *Conversation) PendingDeletion() *models.DeleteCriterion {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

func (c *Conversation) dispatch(ctx context.Context, text string) {
	cmd, err := c.classifier.Classify(ctx, text)
	if err != nil {
		c.logger.Error("Failed to classify command", zap.Error(err))
		c.fail("Failed to understand command", err)
		return
	}

	c.logger.Debug("Classified command",
		zap.String("action", string(cmd.Action)),
		zap.Float64("confidence", cmd.Confidence))

	switch cmd.Action {
	case models.ActionReadEmails:
		c.readEmails(ctx)
	case models.ActionGenerateReplies:
		c.generateReplies(ctx)
	case models.ActionSendReply:
		c.sendReply(ctx, cmd.Parameters)
	case models.ActionDeleteEmail:
		c.requestDelete(cmd.Parameters)
	case models.ActionCategorizeInbox:
		c.categorize(ctx, cmd.Parameters)
	case models.ActionDailyDigest:
		c.dailyDigest(ctx)
	default:
		c.append(models.RoleSystem, unknownCommandText)
	}
}

func (c *Conversation) append(role models.Role, text string) models.Message {
	msg := models.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		ChatID:    c.chatID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, msg)
	c.mu.Unlock()
	return msg
}

// fail appends an error entry of the form "<what>: <err>". An auth failure
// is also remembered so Handle can report it.
func (c *Conversation) fail(what string, err error) {
	if api.IsAuthError(err) {
		c.mu.Lock()
		c.authErr = err
		c.mu.Unlock()
		c.append(models.RoleError, "Your session has expired. Please sign in again.")
		return
	}
	c.append(models.RoleError, what+": "+err.Error())
}

func (c *Conversation) length() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transcript)
}
