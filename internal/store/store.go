// Package store persists chats and their messages.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/oklog/ulid/v2"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("chat belongs to another user")
)

// Role is the author of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r may be stored.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Chat is a conversation owned by one user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is one stored turn of a chat.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the interface for chat persistence. Messages of a chat are
// append-only and listed oldest first.
type Store interface {
	CreateChat(ctx context.Context, userID, title string) (*Chat, error)
	// EnsureChat returns the chat with the given id, creating it for userID
	// when it does not exist. A chat owned by someone else yields ErrForbidden.
	EnsureChat(ctx context.Context, userID, chatID, title string) (*Chat, error)
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	// ListChats returns the user's chats, newest first.
	ListChats(ctx context.Context, userID string) ([]Chat, error)
	// DeleteChat removes a chat and its messages after checking ownership.
	DeleteChat(ctx context.Context, userID, chatID string) error

	Append(ctx context.Context, chatID string, role Role, content string) (string, error)
	List(ctx context.Context, chatID string) ([]Message, error)
	// Last returns the most recent message, or ErrNotFound for an empty chat.
	Last(ctx context.Context, chatID string) (*Message, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		s, err := NewSQLiteStore(cfg.DatabasePath())
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewID returns a time-sortable identifier.
func NewID() string {
	return strings.ToLower(ulid.Make().String())
}

// Owned returns ErrForbidden unless chat belongs to userID.
func Owned(chat *Chat, userID string) error {
	if chat.UserID != userID {
		return ErrForbidden
	}
	return nil
}

var escapes = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\t`, "\t",
	`\r`, "\r",
	`\"`, `"`,
	`\'`, `'`,
)

// Clean converts literal escape sequences that clients double-encode back into
// the characters they stand for.
func Clean(content string) string {
	return escapes.Replace(content)
}

const maxTitleWidth = 48

// Title derives a chat title from its first message, truncated to a fixed
// display width.
func Title(firstMessage string) string {
	title := strings.Join(strings.Fields(firstMessage), " ")
	if title == "" {
		return "New chat"
	}
	return runewidth.Truncate(title, maxTitleWidth, "...")
}
