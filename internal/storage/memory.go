package storage

import (
	"context"
	"sync"

	"github.com/xaenox/mailpilot-bot/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	state    map[string]string
	messages map[int64][]*models.Message
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		state:    make(map[string]string),
		messages: make(map[int64][]*models.Message),
	}
}

func (s *MemoryStorage) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state[TokenKey], nil
}

func (s *MemoryStorage) SaveToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[TokenKey] = token
	return nil
}

func (s *MemoryStorage) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state, TokenKey)
	return nil
}

func (s *MemoryStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], &stored)
	return nil
}

func (s *MemoryStorage) GetMessages(ctx context.Context, chatID int64, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[chatID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	result := make([]*models.Message, 0, len(all))
	for _, m := range all {
		copied := *m
		result = append(result, &copied)
	}
	return result, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
