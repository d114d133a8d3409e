package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// ChatRepository handles persistence for chat transcripts. All reads and
// writes are scoped to the owning user.
type ChatRepository interface {
	ListByUser(ctx context.Context, userID string) ([]ChatSummary, error)
	Create(ctx context.Context, chat *Chat) (*Chat, error)
	GetByID(ctx context.Context, id, userID string) (*Chat, error)
	AppendMessage(ctx context.Context, id, userID string, msg ChatMessage) (*Chat, error)
	Rename(ctx context.Context, id, userID, title string) (*Chat, error)
	Delete(ctx context.Context, id, userID string) error
}

// RegistrationCodeRepository handles registration-code persistence.
type RegistrationCodeRepository interface {
	Create(ctx context.Context, code string, expiresAt *time.Time) (*RegistrationCode, error)
	GetByCode(ctx context.Context, code string) (*RegistrationCode, error)
	MarkUsed(ctx context.Context, id, userID string, usedAt time.Time) error
	List(ctx context.Context) ([]RegistrationCode, error)
	Delete(ctx context.Context, id string) error
	EnsureExists(ctx context.Context, code string) error
}

// ImageRepository persists generation-history records.
type ImageRepository interface {
	Save(ctx context.Context, img *Image) error
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]Image, error)
}
