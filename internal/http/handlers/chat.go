package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

const chatTitleMaxRunes = 20

type chatSummaryDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

type chatDTO struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Messages  []domain.ChatMessage `json:"messages"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func toChatDTO(c *domain.Chat) chatDTO {
	msgs := c.Messages
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return chatDTO{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  msgs,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ChatList returns the caller's chats, most recently updated first.
func (a *App) ChatList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	chats, err := a.Chats.ListByUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list chats failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	items := make([]chatSummaryDTO, 0, len(chats))
	for _, c := range chats {
		items = append(items, chatSummaryDTO{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt})
	}
	a.json(w, http.StatusOK, items)
}

type chatCreateRequest struct {
	FirstMessage string `json:"first_message"`
}

// ChatCreate starts a conversation, deriving the title from the first
// message when one is given.
func (a *App) ChatCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req chatCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	chat := &domain.Chat{UserID: userID, Title: deriveChatTitle(req.FirstMessage)}
	if msg := strings.TrimSpace(req.FirstMessage); msg != "" {
		chat.Messages = []domain.ChatMessage{{Role: "user", Content: msg}}
	}
	created, err := a.Chats.Create(r.Context(), chat)
	if err != nil {
		a.Logger.Error().Err(err).Msg("create chat failed")
		a.error(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	a.json(w, http.StatusOK, toChatDTO(created))
}

func deriveChatTitle(firstMessage string) string {
	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return "New Chat"
	}
	if runes := []rune(title); len(runes) > chatTitleMaxRunes {
		return string(runes[:chatTitleMaxRunes]) + "..."
	}
	return title
}

// ChatGet returns one chat owned by the caller.
func (a *App) ChatGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	chat, err := a.Chats.GetByID(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "chat not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load chat failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	a.json(w, http.StatusOK, toChatDTO(chat))
}

type chatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatAppendMessage pushes a message onto the transcript.
func (a *App) ChatAppendMessage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role != "user" && req.Role != "assistant" && req.Role != "system" {
		a.error(w, http.StatusBadRequest, "invalid message role")
		return
	}
	chat, err := a.Chats.AppendMessage(r.Context(), chi.URLParam(r, "id"), userID, domain.ChatMessage{Role: req.Role, Content: req.Content})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "chat not found")
			return
		}
		a.Logger.Error().Err(err).Msg("append chat message failed")
		a.error(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	a.json(w, http.StatusOK, toChatDTO(chat))
}

type chatRenameRequest struct {
	Title string `json:"title"`
}

// ChatRename updates the chat title.
func (a *App) ChatRename(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req chatRenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		a.error(w, http.StatusBadRequest, "title must not be empty")
		return
	}
	chat, err := a.Chats.Rename(r.Context(), chi.URLParam(r, "id"), userID, strings.TrimSpace(req.Title))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "chat not found")
			return
		}
		a.Logger.Error().Err(err).Msg("rename chat failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	a.json(w, http.StatusOK, toChatDTO(chat))
}

// ChatDelete removes a chat owned by the caller.
func (a *App) ChatDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if err := a.Chats.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "chat not found")
			return
		}
		a.Logger.Error().Err(err).Msg("delete chat failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "chat deleted"})
}
