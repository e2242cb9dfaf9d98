package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps chats in process memory. It is used for tests and for
// running without a data directory.
type MemoryStore struct {
	mu       sync.Mutex
	chats    map[string]*Chat
	messages map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]*Chat),
		messages: make(map[string][]Message),
	}
}

func (s *MemoryStore) CreateChat(ctx context.Context, userID, title string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat := &Chat{ID: NewID(), UserID: userID, Title: title, CreatedAt: now()}
	s.chats[chat.ID] = chat
	copied := *chat
	return &copied, nil
}

func (s *MemoryStore) EnsureChat(ctx context.Context, userID, chatID, title string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		chat = &Chat{ID: chatID, UserID: userID, Title: title, CreatedAt: now()}
		s.chats[chatID] = chat
	}
	copied := *chat
	return &copied, Owned(chat, userID)
}

func (s *MemoryStore) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *chat
	return &copied, nil
}

func (s *MemoryStore) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chats := []Chat{}
	for _, chat := range s.chats {
		if chat.UserID == userID {
			chats = append(chats, *chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		if !chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].CreatedAt.After(chats[j].CreatedAt)
		}
		return chats[i].ID > chats[j].ID
	})
	return chats, nil
}

func (s *MemoryStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return ErrNotFound
	}
	if err := Owned(chat, userID); err != nil {
		return err
	}
	delete(s.chats, chatID)
	delete(s.messages, chatID)
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, chatID string, role Role, content string) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("invalid role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return "", ErrNotFound
	}
	msg := Message{ID: NewID(), ChatID: chatID, Role: role, Content: content, CreatedAt: now()}
	s.messages[chatID] = append(s.messages[chatID], msg)
	return msg.ID, nil
}

func (s *MemoryStore) List(ctx context.Context, chatID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message{}, s.messages[chatID]...), nil
}

func (s *MemoryStore) Last(ctx context.Context, chatID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[chatID]
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
