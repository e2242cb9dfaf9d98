package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/auth"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/store"
)

type createChatRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
	// Role is optional. When set the content is stored with escape cleanup,
	// otherwise it is stored as-is as a user message.
	Role string `json:"role,omitempty"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if !readJSON(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = store.Title("")
	}
	chat, err := s.store.CreateChat(r.Context(), auth.UserFrom(r.Context()), title)
	if err != nil {
		s.storeFailure(w, r, "create chat", err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		s.storeFailure(w, r, "list chats", err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteChat(r.Context(), auth.UserFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.storeFailure(w, r, "delete chat", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	chat, ok := s.ownedChat(w, r)
	if !ok {
		return
	}
	msgs, err := s.store.List(r.Context(), chat.ID)
	if err != nil {
		s.storeFailure(w, r, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	chat, ok := s.ownedChat(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !readJSON(w, r, &req) {
		return
	}

	role := store.RoleUser
	content := req.Content
	if req.Role != "" {
		role = store.Role(req.Role)
		if !role.Valid() {
			writeError(w, http.StatusBadRequest, "role must be user or assistant")
			return
		}
		content = store.Clean(content)
	}
	if strings.TrimSpace(content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	id, err := s.store.Append(r.Context(), chat.ID, role, content)
	if err != nil {
		s.storeFailure(w, r, "append message", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleLastMessage(w http.ResponseWriter, r *http.Request) {
	chat, ok := s.ownedChat(w, r)
	if !ok {
		return
	}
	msg, err := s.store.Last(r.Context(), chat.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		s.storeFailure(w, r, "last message", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ownedChat loads the {id} chat and checks it belongs to the caller.
func (s *Server) ownedChat(w http.ResponseWriter, r *http.Request) (*store.Chat, bool) {
	chat, err := s.store.GetChat(r.Context(), r.PathValue("id"))
	if err == nil {
		err = store.Owned(chat, auth.UserFrom(r.Context()))
	}
	if err != nil {
		s.storeFailure(w, r, "load chat", err)
		return nil, false
	}
	return chat, true
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	default:
		s.logger.Error(op+" failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
