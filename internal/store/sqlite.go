package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);
`

// schemaVersion is the current schema version. Increment when adding migrations.
const schemaVersion = 1

// SQLiteStore is a Store backed by a local SQLite database in WAL mode.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// initSchema creates the schema on first use. The common case, an already
// current database, costs a single SELECT.
func initSchema(db *sql.DB) error {
	var current int
	err := db.QueryRow("SELECT version FROM schema_version").Scan(&current)
	if err == nil && current >= schemaVersion {
		return nil
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, userID, title string) (*Chat, error) {
	chat := &Chat{ID: NewID(), UserID: userID, Title: title, CreatedAt: now()}
	if err := s.insertChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *SQLiteStore) insertChat(ctx context.Context, chat *Chat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		chat.ID, chat.UserID, chat.Title, chat.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EnsureChat(ctx context.Context, userID, chatID, title string) (*Chat, error) {
	chat, err := s.GetChat(ctx, chatID)
	if err == nil {
		return chat, Owned(chat, userID)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	chat = &Chat{ID: chatID, UserID: userID, Title: title, CreatedAt: now()}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		chat.ID, chat.UserID, chat.Title, chat.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	// Another request may have created it first.
	chat, err = s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return chat, Owned(chat, userID)
}

func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM chats WHERE id = ?`, chatID).
		Scan(&chat.ID, &chat.UserID, &chat.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	chat.CreatedAt = time.UnixMilli(created)
	return &chat, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context, userID string) ([]Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at FROM chats WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var chat Chat
		var created int64
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &created); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chat.CreatedAt = time.UnixMilli(created)
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

func (s *SQLiteStore) DeleteChat(ctx context.Context, userID, chatID string) error {
	chat, err := s.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := Owned(chat, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, chatID string, role Role, content string) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("invalid role %q", role)
	}
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return "", err
	}
	id := NewID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, chatID, string(role), content, now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) List(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = ? ORDER BY id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) Last(ctx context.Context, chatID string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT 1`, chatID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return msg, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*Message, error) {
	var msg Message
	var role string
	var created int64
	if err := row.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	msg.Role = Role(role)
	msg.CreatedAt = time.UnixMilli(created)
	return &msg, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// now is truncated to the stored precision so values round-trip exactly.
func now() time.Time {
	return time.UnixMilli(time.Now().UnixMilli())
}
