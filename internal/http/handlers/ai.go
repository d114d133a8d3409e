package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"server/internal/ai"
)

const imageHistoryLimit = 50

// ChatCompletions proxies a streaming completion exchange. The payload
// passes through untouched in both directions.
func (a *App) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	if err := a.AI.CompleteChat(r.Context(), r.Body, w); err != nil {
		a.aiError(w, r, err)
	}
}

type imageGenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
	Size   string `json:"size"`
	Style  string `json:"style"`
}

// ImagesGenerations runs one image generation to completion and returns
// the result URL.
func (a *App) ImagesGenerations(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	url, err := a.AI.GenerateImage(r.Context(), userID, ai.GenerationRequest{
		Prompt: req.Prompt,
		Model:  req.Model,
		Size:   req.Size,
		Style:  req.Style,
	})
	if err != nil {
		a.aiError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": url})
}

type imageHistoryDTO struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	Resolution string    `json:"resolution"`
	Style      string    `json:"style"`
	ImageURL   string    `json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImagesHistory returns the caller's recent generation records.
func (a *App) ImagesHistory(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	images, err := a.Images.ListRecentByUser(r.Context(), userID, imageHistoryLimit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list image history failed")
		a.error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	items := make([]imageHistoryDTO, 0, len(images))
	for _, img := range images {
		items = append(items, imageHistoryDTO{
			ID:         img.ID,
			Prompt:     img.Prompt,
			Model:      img.Model,
			Resolution: img.Resolution,
			Style:      img.Style,
			ImageURL:   img.ImageURL,
			CreatedAt:  img.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, items)
}

type documentUploadRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// DocumentsUpload caches already-decoded document text for the caller's
// session. A new upload replaces the previous one.
func (a *App) DocumentsUpload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req documentUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		a.error(w, http.StatusBadRequest, "document content must not be empty")
		return
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = "document.txt"
	}
	a.AI.CacheDocument(a.sessionKey(r), fileName, req.Content)
	a.json(w, http.StatusOK, map[string]string{
		"message":   "document cached",
		"file_name": fileName,
	})
}

type documentChatRequest struct {
	Prompt string `json:"prompt"`
}

type documentChatResponse struct {
	Analysis         string `json:"analysis"`
	DocumentFileName string `json:"document_file_name"`
}

// DocumentsChat consumes the cached document and answers one question
// about it.
func (a *App) DocumentsChat(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "missing user context")
		return
	}
	var req documentChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	answer, err := a.AI.CompleteWithDocument(r.Context(), a.sessionKey(r), req.Prompt)
	if err != nil {
		a.aiError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, documentChatResponse{
		Analysis:         answer.Analysis,
		DocumentFileName: answer.FileName,
	})
}

// sessionKey scopes the document cache. Clients that juggle multiple
// tabs can pin their own key; everyone else gets one slot per user.
func (a *App) sessionKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-Session-Key")); key != "" {
		return a.currentUserID(r) + ":" + key
	}
	return a.currentUserID(r)
}

// aiError translates the orchestration error taxonomy into HTTP answers.
func (a *App) aiError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *ai.ValidationError
		upstream   *ai.UpstreamRequestError
		genFailed  *ai.GenerationFailedError
	)
	switch {
	case errors.As(err, &validation):
		a.error(w, http.StatusBadRequest, validation.Reason)
	case errors.Is(err, ai.ErrNotConfigured):
		a.Logger.Error().Msg("ai upstream not configured")
		a.error(w, http.StatusInternalServerError, "ai service is not configured")
	case errors.Is(err, ai.ErrNoDocumentContext):
		a.error(w, http.StatusNotFound, "no document in context, please upload again")
	case errors.Is(err, ai.ErrTimeout):
		a.error(w, http.StatusGatewayTimeout, "generation timed out, please retry later")
	case errors.Is(err, ai.ErrUnrecognizedResult):
		a.Logger.Error().Err(err).Msg("upstream result format not recognized")
		a.error(w, http.StatusBadGateway, "no image url in upstream response")
	case errors.As(err, &upstream):
		// Mirror the upstream verdict so the client sees the real reason.
		a.Logger.Error().Int("upstream_status", upstream.StatusCode).Msg("upstream request rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(upstream.StatusCode)
		_, _ = w.Write([]byte(upstream.Body))
	case errors.As(err, &genFailed):
		a.Logger.Error().Err(err).Msg("generation reported failed by upstream")
		a.error(w, http.StatusBadGateway, "image generation failed")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing sensible to write.
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("ai request failed")
		a.error(w, http.StatusInternalServerError, "server error")
	}
}
