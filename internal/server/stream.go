package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/agent"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/auth"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/history"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/sse"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/store"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/stream"
)

const (
	// chatIDHeader carries the conversation id, which the server picks when
	// the request leaves chatId empty.
	chatIDHeader      = "X-Chat-ID"
	maxChatIDLength   = 128
	processFailureMsg = "Failed to process the chat"
)

type chatRequest struct {
	Messages   []history.Prior `json:"messages"`
	NewMessage string          `json:"newMessage"`
	ChatID     string          `json:"chatId"`
}

func (req *chatRequest) validate() error {
	if strings.TrimSpace(req.NewMessage) == "" {
		return errors.New("newMessage is required")
	}
	for i, msg := range req.Messages {
		if err := history.ValidateRole(msg.Role); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	if len(req.ChatID) > maxChatIDLength {
		return errors.New("chatId is too long")
	}
	for _, r := range req.ChatID {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-') {
			return errors.New("chatId may only contain letters, digits, '-' and '_'")
		}
	}
	return nil
}

// handleChatStream validates the request, then streams the agent's reply as
// event-stream frames. Every rejection happens before the headers are committed.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFrom(ctx)
	logger := s.logger.With("request_id", requestIDFrom(ctx), "user_id", user)

	var req chatRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ChatID == "" {
		req.ChatID = store.NewID()
	}
	logger = logger.With("chat_id", req.ChatID)

	chat, err := s.store.EnsureChat(ctx, user, req.ChatID, store.Title(req.NewMessage))
	if errors.Is(err, store.ErrForbidden) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		logger.Error("load chat", "error", err)
		writeError(w, http.StatusInternalServerError, processFailureMsg)
		return
	}

	cp, err := s.checkpoints.Begin(chat.ID, s.loop.History().Initial(req.Messages, req.NewMessage))
	switch {
	case errors.Is(err, agent.ErrBusy):
		writeError(w, http.StatusConflict, "A response is already streaming for this chat")
		return
	case errors.Is(err, agent.ErrCapacity), errors.Is(err, agent.ErrClosed):
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "Server is busy, try again shortly")
		return
	case err != nil:
		logger.Error("begin conversation", "error", err)
		writeError(w, http.StatusInternalServerError, processFailureMsg)
		return
	}
	defer s.checkpoints.Dispose(cp)

	if _, err := s.store.Append(ctx, chat.ID, store.RoleUser, req.NewMessage); err != nil {
		logger.Error("save user message", "error", err)
		writeError(w, http.StatusInternalServerError, processFailureMsg)
		return
	}

	w.Header().Set(chatIDHeader, chat.ID)
	writer, err := sse.NewWriter(w)
	if err != nil {
		// The status line is already out; nothing useful can be written.
		logger.Error("open event stream", "error", err)
		return
	}

	adapter := &stream.Adapter{
		Writer: writer,
		Save: func(ctx context.Context, content string) error {
			_, err := s.store.Append(ctx, chat.ID, store.RoleAssistant, content)
			return err
		},
		// Comments must not precede the connected frame.
		OnConnected: func() { writer.Heartbeat(s.cfg.HeartbeatInterval) },
		Logger:      logger,
	}

	err = adapter.Run(ctx, func(ctx context.Context, emit agent.Emitter) error {
		return s.loop.Run(ctx, cp, emit)
	})
	if err != nil {
		logger.Info("chat stream ended with error", "turns", cp.Snapshot.Turn, "error", err)
		return
	}
	logger.Info("chat stream completed", "turns", cp.Snapshot.Turn, "messages", len(cp.Messages))
}
