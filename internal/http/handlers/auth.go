package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"server/internal/domain"
	"server/internal/middleware"
)

type registerRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	RegistrationCode string `json:"registration_code"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string  `json:"message"`
	Token   string  `json:"token"`
	User    userDTO `json:"user"`
}

type userDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Register creates an account gated by a single-use registration code.
func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if strings.TrimSpace(req.RegistrationCode) == "" {
		a.error(w, http.StatusBadRequest, "registration code is required")
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.RegistrationCode))
	regCode, err := a.Codes.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusBadRequest, "registration code invalid")
			return
		}
		a.Logger.Error().Err(err).Msg("load registration code failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	if regCode.Used {
		a.error(w, http.StatusBadRequest, "registration code already used")
		return
	}
	if !regCode.Usable(time.Now()) {
		a.error(w, http.StatusBadRequest, "registration code expired")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.Logger.Error().Err(err).Msg("hash password failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	user, err := a.Users.Create(r.Context(), &domain.User{Username: req.Username, PasswordHash: string(hash)})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			a.error(w, http.StatusBadRequest, "username already exists")
			return
		}
		a.Logger.Error().Err(err).Msg("create user failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	if err := a.Codes.MarkUsed(r.Context(), regCode.ID, user.ID, time.Now()); err != nil {
		if errors.Is(err, domain.ErrCodeUsed) {
			a.error(w, http.StatusBadRequest, "registration code already used")
			return
		}
		a.Logger.Error().Err(err).Str("code_id", regCode.ID).Msg("mark registration code used failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"message": "registered"})
}

// Login verifies credentials and issues a bearer token.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, err := a.Users.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		// Same answer for unknown user and bad password.
		a.error(w, http.StatusBadRequest, "invalid username or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		a.error(w, http.StatusBadRequest, "invalid username or password")
		return
	}
	token, err := middleware.SignToken(a.JWTSecret, user.ID, time.Now())
	if err != nil {
		a.Logger.Error().Err(err).Msg("sign token failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	a.json(w, http.StatusOK, loginResponse{
		Message: "login ok",
		Token:   token,
		User:    userDTO{ID: user.ID, Username: user.Username},
	})
}

type createCodeRequest struct {
	Code      string     `json:"code"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type codeDTO struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Used      bool       `json:"used"`
	UsedBy    string     `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateRegistrationCode registers a new code, generating one when the
// admin does not supply it.
func (a *App) CreateRegistrationCode(w http.ResponseWriter, r *http.Request) {
	var req createCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		code = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	}
	created, err := a.Codes.Create(r.Context(), code, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			a.error(w, http.StatusBadRequest, "registration code already exists")
			return
		}
		a.Logger.Error().Err(err).Msg("create registration code failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{
		"message": "registration code created",
		"code":    created.Code,
		"id":      created.ID,
	})
}

// ListRegistrationCodes returns every code, newest first.
func (a *App) ListRegistrationCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := a.Codes.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("list registration codes failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	items := make([]codeDTO, 0, len(codes))
	for _, c := range codes {
		items = append(items, codeDTO{
			ID:        c.ID,
			Code:      c.Code,
			Used:      c.Used,
			UsedBy:    c.UsedByUsername,
			UsedAt:    c.UsedAt,
			ExpiresAt: c.ExpiresAt,
			CreatedAt: c.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, items)
}

// DeleteRegistrationCode removes a code by id.
func (a *App) DeleteRegistrationCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Codes.Delete(r.Context(), id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.Logger.Error().Err(err).Str("code_id", id).Msg("delete registration code failed")
		a.error(w, http.StatusInternalServerError, "server error")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "registration code deleted"})
}
