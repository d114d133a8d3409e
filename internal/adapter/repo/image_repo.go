package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ImageRepositoryPG implements domain.ImageRepository backed by PostgreSQL.
type ImageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewImageRepository creates a new ImageRepositoryPG.
func NewImageRepository(pool *pgxpool.Pool) *ImageRepositoryPG {
	return &ImageRepositoryPG{pool: pool}
}

// Save inserts a generation-history record.
func (r *ImageRepositoryPG) Save(ctx context.Context, img *domain.Image) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO images (id, user_id, prompt, model, resolution, style, image_url)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6);
`, img.UserID, img.Prompt, img.Model, img.Resolution, img.Style, img.ImageURL)
	return err
}

// ListRecentByUser returns the user's latest records, newest first.
func (r *ImageRepositoryPG) ListRecentByUser(ctx context.Context, userID string, limit int) ([]domain.Image, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, prompt, model, resolution, style, image_url, created_at
FROM images
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.Image
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.ID, &img.UserID, &img.Prompt, &img.Model, &img.Resolution, &img.Style, &img.ImageURL, &img.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, img)
	}
	return items, rows.Err()
}
