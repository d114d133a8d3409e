package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/middleware"
)

// In-memory repository fakes. None of them are safe for concurrent use;
// handler tests are sequential.

type fakeUserRepo struct {
	seq   int
	users map[string]*domain.User // keyed by id
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == user.Username {
			return nil, domain.ErrDuplicate
		}
	}
	f.seq++
	stored := *user
	stored.ID = fmt.Sprintf("user-%d", f.seq)
	stored.CreatedAt = time.Now()
	f.users[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

type fakeCodeRepo struct {
	seq   int
	codes map[string]*domain.RegistrationCode // keyed by id
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: map[string]*domain.RegistrationCode{}}
}

func (f *fakeCodeRepo) Create(ctx context.Context, code string, expiresAt *time.Time) (*domain.RegistrationCode, error) {
	for _, c := range f.codes {
		if c.Code == code {
			return nil, domain.ErrDuplicate
		}
	}
	f.seq++
	stored := &domain.RegistrationCode{
		ID:        fmt.Sprintf("code-%d", f.seq),
		Code:      code,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	f.codes[stored.ID] = stored
	return stored, nil
}

func (f *fakeCodeRepo) GetByCode(ctx context.Context, code string) (*domain.RegistrationCode, error) {
	for _, c := range f.codes {
		if c.Code == code {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCodeRepo) MarkUsed(ctx context.Context, id, userID string, usedAt time.Time) error {
	c, ok := f.codes[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Used {
		return domain.ErrCodeUsed
	}
	c.Used = true
	c.UsedBy = &userID
	c.UsedAt = &usedAt
	return nil
}

func (f *fakeCodeRepo) List(ctx context.Context) ([]domain.RegistrationCode, error) {
	out := make([]domain.RegistrationCode, 0, len(f.codes))
	for _, c := range f.codes {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCodeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.codes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.codes, id)
	return nil
}

func (f *fakeCodeRepo) EnsureExists(ctx context.Context, code string) error {
	if _, err := f.GetByCode(ctx, code); err == nil {
		return nil
	}
	_, err := f.Create(ctx, code, nil)
	return err
}

type fakeChatRepo struct {
	seq   int
	chats map[string]*domain.Chat
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: map[string]*domain.Chat{}}
}

func (f *fakeChatRepo) ListByUser(ctx context.Context, userID string) ([]domain.ChatSummary, error) {
	out := []domain.ChatSummary{}
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, domain.ChatSummary{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeChatRepo) Create(ctx context.Context, chat *domain.Chat) (*domain.Chat, error) {
	f.seq++
	stored := *chat
	stored.ID = fmt.Sprintf("chat-%d", f.seq)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.chats[stored.ID] = &stored
	return &stored, nil
}

func (f *fakeChatRepo) GetByID(ctx context.Context, id, userID string) (*domain.Chat, error) {
	c, ok := f.chats[id]
	if !ok || c.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeChatRepo) AppendMessage(ctx context.Context, id, userID string, msg domain.ChatMessage) (*domain.Chat, error) {
	c, err := f.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	return c, nil
}

func (f *fakeChatRepo) Rename(ctx context.Context, id, userID, title string) (*domain.Chat, error) {
	c, err := f.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return c, nil
}

func (f *fakeChatRepo) Delete(ctx context.Context, id, userID string) error {
	if _, err := f.GetByID(ctx, id, userID); err != nil {
		return err
	}
	delete(f.chats, id)
	return nil
}

type fakeImageRepo struct {
	seq    int
	images []domain.Image
}

func (f *fakeImageRepo) Save(ctx context.Context, img *domain.Image) error {
	f.seq++
	stored := *img
	stored.ID = fmt.Sprintf("img-%d", f.seq)
	stored.CreatedAt = time.Now()
	f.images = append(f.images, stored)
	return nil
}

func (f *fakeImageRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]domain.Image, error) {
	out := []domain.Image{}
	for i := len(f.images) - 1; i >= 0 && len(out) < limit; i-- {
		if f.images[i].UserID == userID {
			out = append(out, f.images[i])
		}
	}
	return out, nil
}

type testEnv struct {
	app    *App
	users  *fakeUserRepo
	chats  *fakeChatRepo
	codes  *fakeCodeRepo
	images *fakeImageRepo
}

func newTestEnv() *testEnv {
	users := newFakeUserRepo()
	chats := newFakeChatRepo()
	codes := newFakeCodeRepo()
	images := &fakeImageRepo{}
	return &testEnv{
		app: &App{
			Logger:    zerolog.Nop(),
			JWTSecret: "test-secret",
			Users:     users,
			Chats:     chats,
			Codes:     codes,
			Images:    images,
		},
		users:  users,
		chats:  chats,
		codes:  codes,
		images: images,
	}
}

// router mounts the handlers under test with an authenticated user baked
// into the context, sidestepping token plumbing.
func (e *testEnv) router(userID string) http.Handler {
	r := chi.NewRouter()
	if userID != "" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.ContextWithUserID(req.Context(), userID)))
			})
		})
	}
	r.Post("/api/auth/register", e.app.Register)
	r.Post("/api/auth/login", e.app.Login)
	r.Post("/api/auth/admin/registration-codes", e.app.CreateRegistrationCode)
	r.Get("/api/auth/admin/registration-codes", e.app.ListRegistrationCodes)
	r.Delete("/api/auth/admin/registration-codes/{id}", e.app.DeleteRegistrationCode)
	r.Get("/api/chat/list", e.app.ChatList)
	r.Post("/api/chat/new", e.app.ChatCreate)
	r.Get("/api/chat/{id}", e.app.ChatGet)
	r.Post("/api/chat/{id}/message", e.app.ChatAppendMessage)
	r.Put("/api/chat/{id}", e.app.ChatRename)
	r.Delete("/api/chat/{id}", e.app.ChatDelete)
	r.Post("/api/ai/chat/completions", e.app.ChatCompletions)
	r.Post("/api/ai/images/generations", e.app.ImagesGenerations)
	r.Get("/api/ai/images/history", e.app.ImagesHistory)
	r.Post("/api/ai/documents", e.app.DocumentsUpload)
	r.Post("/api/ai/documents/chat", e.app.DocumentsChat)
	return r
}
