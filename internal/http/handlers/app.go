package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/ai"
	"server/internal/domain"
	"server/internal/middleware"
)

// App is the dependency container shared by all route handlers.
type App struct {
	Logger    zerolog.Logger
	JWTSecret string

	Users  domain.UserRepository
	Chats  domain.ChatRepository
	Codes  domain.RegistrationCodeRepository
	Images domain.ImageRepository

	AI *ai.Service
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
