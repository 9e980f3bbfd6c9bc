package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xaenox/mailpilot-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

// SQLStorage implements Storage on any database/sql driver. Queries are
// written with "?" placeholders and rebound for drivers that number them.
type SQLStorage struct {
	db       *sql.DB
	numbered bool
	logger   *zap.Logger
}

func newSQLStorage(db *sql.DB, numbered bool, logger *zap.Logger) (*SQLStorage, error) {
	s := &SQLStorage{db: db, numbered: numbered, logger: logger}

	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return s, nil
}

func (s *SQLStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	applied := 0
	for _, stmt := range strings.Split(string(migrationSQL), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			s.logger.Error("Migration statement failed", zap.Error(err), zap.Int("statement", applied+1))
			return fmt.Errorf("error executing migrations: %w", err)
		}
		applied++
	}

	s.logger.Info("Database schema initialized", zap.Int("statements", applied))
	return nil
}

func (s *SQLStorage) rebind(query string) string {
	if !s.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStorage) Token(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM client_state WHERE key = ?`), TokenKey,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading token: %w", err)
	}
	return token, nil
}

func (s *SQLStorage) SaveToken(ctx context.Context, token string) error {
	query := `
		INSERT INTO client_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, s.rebind(query), TokenKey, token, time.Now().UTC()); err != nil {
		s.logger.Error("Failed to save token", zap.Error(err))
		return fmt.Errorf("error saving token: %w", err)
	}
	return nil
}

func (s *SQLStorage) ClearToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM client_state WHERE key = ?`), TokenKey); err != nil {
		s.logger.Error("Failed to clear token", zap.Error(err))
		return fmt.Errorf("error clearing token: %w", err)
	}
	return nil
}

func (s *SQLStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO transcript_messages (id, chat_id, role, text, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		msg.ID,
		msg.ChatID,
		string(msg.Role),
		msg.Text,
		msg.Timestamp.UTC(),
	)
	if err != nil {
		s.logger.Error("Failed to save message",
			zap.Error(err),
			zap.String("message_id", msg.ID),
			zap.Int64("chat_id", msg.ChatID))
		return fmt.Errorf("error saving message: %w", err)
	}
	return nil
}

func (s *SQLStorage) GetMessages(ctx context.Context, chatID int64, limit int) ([]*models.Message, error) {
	// ids are UUIDv7, so ordering by id is ordering by creation
	query := `
		SELECT id, chat_id, role, text, created_at
		FROM transcript_messages
		WHERE chat_id = ?
		ORDER BY id DESC`
	args := []any{chatID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		s.logger.Error("Failed to query messages", zap.Error(err), zap.Int64("chat_id", chatID))
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var role string
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		msg.Role = models.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLStorage) Close() error {
	return s.db.Close()
}
