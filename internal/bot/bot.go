package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/mailpilot-bot/internal/api"
	"github.com/xaenox/mailpilot-bot/internal/assistant"
	"github.com/xaenox/mailpilot-bot/internal/auth"
	"github.com/xaenox/mailpilot-bot/internal/classifier"
	"github.com/xaenox/mailpilot-bot/internal/models"
	"github.com/xaenox/mailpilot-bot/internal/storage"
	"go.uber.org/zap"
)

// maxMessageLength is Telegram's limit for a single text message.
const maxMessageLength = 4096

const busyText = "⏳ Still working on your previous command, please wait."

// Sender is the part of the Telegram API the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Session reports and ends the sign-in state shared by every chat.
type Session interface {
	HasToken(ctx context.Context) (bool, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	CheckPermissions(ctx context.Context) (*models.Permissions, error)
}

type Options struct {
	// PublicURL is the base URL of the sign-in web surface.
	PublicURL string
	// AllowedChatIDs limits who may use the bot. Empty allows everyone.
	AllowedChatIDs  []int64
	HistoryLimit    int
	CategorizeCount int
}

type Bot struct {
	api        *tgbotapi.BotAPI
	sender     Sender
	storage    storage.TranscriptStore
	session    Session
	backend    assistant.Backend
	classifier classifier.Classifier
	opts       Options
	allowed    map[int64]bool
	logger     *zap.Logger

	mu            sync.Mutex
	conversations map[int64]*assistant.Conversation
}

func New(token string, store storage.TranscriptStore, session Session, backend assistant.Backend, clf classifier.Classifier, opts Options, logger *zap.Logger) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(botAPI, store, session, backend, clf, opts, logger)
	b.api = botAPI
	return b, nil
}

func newBot(sender Sender, store storage.TranscriptStore, session Session, backend assistant.Backend, clf classifier.Classifier, opts Options, logger *zap.Logger) *Bot {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	allowed := make(map[int64]bool, len(opts.AllowedChatIDs))
	for _, id := range opts.AllowedChatIDs {
		allowed[id] = true
	}

	return &Bot{
		sender:        sender,
		storage:       store,
		session:       session,
		backend:       backend,
		classifier:    clf,
		opts:          opts,
		allowed:       allowed,
		logger:        logger,
		conversations: make(map[int64]*assistant.Conversation),
	}
}

// Start polls for updates until ctx is cancelled. Every message is handled
// on its own goroutine.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if len(b.allowed) > 0 && !b.allowed[chatID] {
		b.logger.Warn("Ignoring message from chat outside the allow-list", zap.Int64("chat_id", chatID))
		b.sendMessage(chatID, "Sorry, this bot is private.")
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	signedIn, err := b.session.HasToken(ctx)
	if err != nil {
		b.logger.Error("Failed to read session", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Sorry, I couldn't check your session. Please try again.")
		return
	}
	if !signedIn {
		b.sendMessage(chatID, b.loginText())
		return
	}

	appended, err := b.conversation(chatID).Handle(ctx, text)
	if errors.Is(err, assistant.ErrBusy) {
		b.sendMessage(chatID, busyText)
		return
	}
	if api.IsAuthError(err) {
		b.deliver(ctx, appended)
		b.sendMessage(chatID, b.loginText())
		return
	}
	if err != nil {
		b.logger.Error("Failed to handle message", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Something went wrong. Please try again.")
		return
	}

	b.deliver(ctx, appended)
}

// deliver persists the turn's messages and sends the bot's side of it.
func (b *Bot) deliver(ctx context.Context, messages []models.Message) {
	for i := range messages {
		msg := &messages[i]
		if err := b.storage.SaveMessage(ctx, msg); err != nil {
			b.logger.Error("Failed to save message",
				zap.Error(err),
				zap.String("message_id", msg.ID),
				zap.Int64("chat_id", msg.ChatID))
		}

		switch msg.Role {
		case models.RoleUser:
		case models.RoleError:
			b.sendErrorMessage(msg.ChatID, msg.Text)
		default:
			b.sendMessage(msg.ChatID, msg.Text)
		}
	}
}

func (b *Bot) conversation(chatID int64) *assistant.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()

	conv, ok := b.conversations[chatID]
	if !ok {
		conv = assistant.NewConversation(chatID, b.backend, b.classifier, b.opts.CategorizeCount, b.logger)
		b.conversations[chatID] = conv
	}
	return conv
}

// resetConversations drops every chat's cache and pending deletion. The
// session is process-wide, so a logout invalidates all of them.
func (b *Bot) resetConversations() {
	b.mu.Lock()
	b.conversations = make(map[int64]*assistant.Conversation)
	b.mu.Unlock()
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(ctx, message)
	case "help":
		b.handleHelp(message)
	case "login":
		b.sendMessage(message.Chat.ID, b.loginText())
	case "logout":
		b.handleLogout(ctx, message)
	case "me":
		b.handleMe(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	var name string
	user, err := b.session.CurrentUser(ctx)
	switch {
	case err == nil:
		name = user.Name
	case errors.Is(err, auth.ErrNotAuthenticated):
	default:
		b.logger.Warn("Failed to fetch current user", zap.Error(err))
	}

	welcome, err := b.conversation(message.Chat.ID).Welcome(name)
	if errors.Is(err, assistant.ErrBusy) {
		b.sendMessage(message.Chat.ID, busyText)
		return
	}
	b.deliver(ctx, []models.Message{welcome})

	if user == nil {
		b.sendMessage(message.Chat.ID, b.loginText())
	}
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Show the welcome message
/help - Show this help message
/login - Connect your Gmail account
/logout - Sign out
/me - Show the signed-in account and its permissions
/history - Show the latest messages of this chat

Anything else is read as an email command, for example:
- read emails
- generate replies
- send reply to email 1
- delete email 2, then confirm delete
- categorize inbox
- daily digest`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleLogout(ctx context.Context, message *tgbotapi.Message) {
	if err := b.session.Logout(ctx); err != nil {
		b.logger.Error("Failed to log out", zap.Error(err), zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Logout failed: "+err.Error())
		return
	}
	b.resetConversations()
	b.sendMessage(message.Chat.ID, "👋 You have been logged out.")
}

func (b *Bot) handleMe(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	user, err := b.session.CurrentUser(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		b.sendMessage(chatID, b.loginText())
		return
	}
	if err != nil {
		b.logger.Error("Failed to fetch current user", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "Failed to get user info: "+err.Error())
		return
	}

	var text strings.Builder
	fmt.Fprintf(&text, "👤 %s\n📧 %s\n", user.Name, user.Email)
	if user.LastLogin != "" {
		fmt.Fprintf(&text, "🕐 Last login: %s\n", user.LastLogin)
	}

	perms, err := b.session.CheckPermissions(ctx)
	switch {
	case err != nil:
		b.logger.Warn("Failed to check permissions", zap.Error(err), zap.Int64("chat_id", chatID))
		text.WriteString("\nCould not check Gmail permissions.")
	case perms.HasPermissions:
		text.WriteString("\n✅ All Gmail permissions granted.")
	default:
		fmt.Fprintf(&text, "\n⚠️ Missing Gmail permissions:\n%s\nSign in again with /login to grant them.",
			strings.Join(perms.MissingScopes, "\n"))
	}

	b.sendMessage(chatID, text.String())
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	messages, err := b.storage.GetMessages(ctx, message.Chat.ID, b.opts.HistoryLimit)
	if err != nil {
		b.logger.Error("Failed to get chat messages",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your message history.")
		return
	}

	if len(messages) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any messages yet.")
		return
	}

	var response strings.Builder
	response.WriteString("Your recent messages:\n")
	for _, msg := range messages {
		who := "🤖"
		switch msg.Role {
		case models.RoleUser:
			who = "🧑"
		case models.RoleError:
			who = "⚠️"
		}
		fmt.Fprintf(&response, "\n%s %s\n%s\n", who, msg.Timestamp.Format("Jan 2 15:04"), msg.Text)
	}

	b.sendMessage(message.Chat.ID, response.String())
}

func (b *Bot) loginText() string {
	base := strings.TrimRight(b.opts.PublicURL, "/")
	return fmt.Sprintf("🔐 Please sign in with Google to use the assistant: %s/signin", base)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := b.sender.Send(msg); err != nil {
			b.logger.Error("Failed to send message",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			return
		}
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	b.sendMessage(chatID, "⚠️ "+text)
}

// splitMessage cuts text into chunks of at most limit runes, preferring to
// break after a newline.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(parts, string(runes))
}
