package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ChatRepositoryPG implements domain.ChatRepository backed by PostgreSQL.
// Messages live as a JSONB array on the chat row, mirroring the embedded
// transcript shape.
type ChatRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a new ChatRepositoryPG.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepositoryPG {
	return &ChatRepositoryPG{pool: pool}
}

// ListByUser returns the user's chats, most recently updated first.
func (r *ChatRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.ChatSummary, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, title, updated_at
FROM chats
WHERE user_id = $1
ORDER BY updated_at DESC;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.ChatSummary
	for rows.Next() {
		var c domain.ChatSummary
		if err := rows.Scan(&c.ID, &c.Title, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Create inserts a chat with its initial transcript.
func (r *ChatRepositoryPG) Create(ctx context.Context, chat *domain.Chat) (*domain.Chat, error) {
	msgs, err := json.Marshal(chat.Messages)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO chats (id, user_id, title, messages)
VALUES (gen_random_uuid(), $1, $2, $3)
RETURNING id, user_id, title, messages, created_at, updated_at;
`, chat.UserID, chat.Title, msgs)
	return scanChat(row)
}

// GetByID fetches a chat owned by the user.
func (r *ChatRepositoryPG) GetByID(ctx context.Context, id, userID string) (*domain.Chat, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, title, messages, created_at, updated_at
FROM chats
WHERE id = $1 AND user_id = $2;
`, id, userID)
	return scanChat(row)
}

// AppendMessage pushes one message onto the transcript and bumps
// updated_at in a single statement.
func (r *ChatRepositoryPG) AppendMessage(ctx context.Context, id, userID string, msg domain.ChatMessage) (*domain.Chat, error) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `
UPDATE chats
SET messages = messages || $3::jsonb,
    updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, title, messages, created_at, updated_at;
`, id, userID, encoded)
	return scanChat(row)
}

// Rename updates the chat title.
func (r *ChatRepositoryPG) Rename(ctx context.Context, id, userID, title string) (*domain.Chat, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE chats
SET title = $3,
    updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, title, messages, created_at, updated_at;
`, id, userID, title)
	return scanChat(row)
}

// Delete removes a chat owned by the user.
func (r *ChatRepositoryPG) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var c domain.Chat
	var msgs []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &msgs, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(msgs) > 0 {
		if err := json.Unmarshal(msgs, &c.Messages); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
