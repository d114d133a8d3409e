package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// RegistrationCodeRepositoryPG implements domain.RegistrationCodeRepository.
type RegistrationCodeRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRegistrationCodeRepository creates a new RegistrationCodeRepositoryPG.
func NewRegistrationCodeRepository(pool *pgxpool.Pool) *RegistrationCodeRepositoryPG {
	return &RegistrationCodeRepositoryPG{pool: pool}
}

// Create inserts a new unused code.
func (r *RegistrationCodeRepositoryPG) Create(ctx context.Context, code string, expiresAt *time.Time) (*domain.RegistrationCode, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO registration_codes (id, code, expires_at)
VALUES (gen_random_uuid(), $1, $2)
RETURNING id, code, used, used_by, used_at, expires_at, created_at;
`, code, expiresAt)
	created, err := scanCode(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrDuplicate
		}
		return nil, err
	}
	return created, nil
}

// GetByCode fetches a code by its redeemable value.
func (r *RegistrationCodeRepositoryPG) GetByCode(ctx context.Context, code string) (*domain.RegistrationCode, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, code, used, used_by, used_at, expires_at, created_at
FROM registration_codes
WHERE code = $1;
`, code)
	return scanCode(row)
}

// MarkUsed flags the code as redeemed by the given user. Only an unused
// code can be claimed, so two concurrent registrations cannot share one.
func (r *RegistrationCodeRepositoryPG) MarkUsed(ctx context.Context, id, userID string, usedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE registration_codes
SET used = TRUE, used_by = $2, used_at = $3
WHERE id = $1 AND used = FALSE;
`, id, userID, usedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeUsed
	}
	return nil
}

// List returns all codes, newest first, with the redeeming username when
// known.
func (r *RegistrationCodeRepositoryPG) List(ctx context.Context) ([]domain.RegistrationCode, error) {
	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.code, c.used, c.used_by, c.used_at, c.expires_at, c.created_at,
       COALESCE(u.username, '')
FROM registration_codes c
LEFT JOIN users u ON u.id = c.used_by
ORDER BY c.created_at DESC;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []domain.RegistrationCode
	for rows.Next() {
		var c domain.RegistrationCode
		if err := rows.Scan(&c.ID, &c.Code, &c.Used, &c.UsedBy, &c.UsedAt, &c.ExpiresAt, &c.CreatedAt, &c.UsedByUsername); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Delete removes a code by id.
func (r *RegistrationCodeRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registration_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// EnsureExists inserts the code if it is not already present. Used to
// seed the default code at boot.
func (r *RegistrationCodeRepositoryPG) EnsureExists(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO registration_codes (id, code)
VALUES (gen_random_uuid(), $1)
ON CONFLICT (code) DO NOTHING;
`, code)
	return err
}

func scanCode(row pgx.Row) (*domain.RegistrationCode, error) {
	var c domain.RegistrationCode
	if err := row.Scan(&c.ID, &c.Code, &c.Used, &c.UsedBy, &c.UsedAt, &c.ExpiresAt, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
