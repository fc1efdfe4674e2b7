// Package users stores accounts, credentials and per-user session lists.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/server/auth"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

const userColumns = `id, name, email, password_hash, pic, verified, sessions, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Pic, &u.Verified, &u.Sessions, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user. A duplicate email yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, name, email, password_hash, pic)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Pic).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("user with email %s: %w", user.Email, common.ErrorAlreadyExists)
		}
		return nil, dbError(err)
	}

	return user, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByIDs returns the users found among ids in no particular order.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`

	return r.list(ctx, query, ids)
}

// Search matches keyword case-insensitively against name or email,
// skipping excludeID. An empty keyword lists everyone else.
func (r *PostgresRepository) Search(ctx context.Context, keyword string, excludeID string) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id <> $1 AND (name ILIKE $2 OR email ILIKE $2)
		 ORDER BY name, email`

	return r.list(ctx, query, excludeID, likePattern(keyword))
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, dbError(err)
		}
		result = append(result, u)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}

	return result, nil
}

func (r *PostgresRepository) SetVerified(ctx context.Context, email string) error {
	return r.exec(ctx, `UPDATE users SET verified = TRUE, updated_at = now() WHERE email = $1`, email)
}

// ResetPassword stores a new hash and revokes every session of the user.
func (r *PostgresRepository) ResetPassword(ctx context.Context, email string, passwordHash []byte) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = $2, sessions = '[]'::jsonb, updated_at = now() WHERE email = $1`,
		email, passwordHash)
}

func (r *PostgresRepository) UpdatePic(ctx context.Context, id string, pic string) error {
	return r.exec(ctx, `UPDATE users SET pic = $2, updated_at = now() WHERE id = $1`, id, pic)
}

// LockSessions reads the session list and locks the row until the
// surrounding transaction ends.
func (r *PostgresRepository) LockSessions(ctx context.Context, id string) (auth.Sessions, error) {
	var sessions auth.Sessions

	err := r.db.QueryRowContext(ctx, `SELECT sessions FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&sessions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError(err)
	}

	return sessions, nil
}

func (r *PostgresRepository) SetSessions(ctx context.Context, id string, sessions auth.Sessions) error {
	return r.exec(ctx, `UPDATE users SET sessions = $2 WHERE id = $1`, id, sessions)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(keyword string) string {
	return "%" + likeEscaper.Replace(keyword) + "%"
}

// dbError wraps a driver failure. Ids that are not valid uuids fail the cast
// in Postgres and are reported as missing rows.
func dbError(err error) error {
	if dbx.IsInvalidText(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}
