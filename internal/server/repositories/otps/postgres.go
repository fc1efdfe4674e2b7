// Package otps stores one-time passcode records scoped to (email, purpose).
package otps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, otp *models.OTP) error {
	query :=
		`INSERT INTO otps (id, email, purpose, code_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		otp.ID, otp.Email, otp.Purpose, otp.CodeHash, otp.CreatedAt, otp.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Latest returns the newest record for (email, purpose), expired or not.
func (r *PostgresRepository) Latest(ctx context.Context, email, purpose string) (*models.OTP, error) {
	query :=
		`SELECT id, email, purpose, code_hash, created_at, expires_at FROM otps
		 WHERE email = $1 AND purpose = $2
		 ORDER BY created_at DESC
		 LIMIT 1`

	otp := &models.OTP{}
	err := r.db.QueryRowContext(ctx, query, email, purpose).
		Scan(&otp.ID, &otp.Email, &otp.Purpose, &otp.CodeHash, &otp.CreatedAt, &otp.ExpiresAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return otp, nil
}

func (r *PostgresRepository) DeleteFor(ctx context.Context, email, purpose string) (int64, error) {
	return r.delete(ctx, `DELETE FROM otps WHERE email = $1 AND purpose = $2`, email, purpose)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, `DELETE FROM otps WHERE expires_at <= $1`, now)
}

func (r *PostgresRepository) delete(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}
