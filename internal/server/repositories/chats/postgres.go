// Package chats stores chats and their ordered membership.
package chats

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

const chatColumns = `c.id, c.name, c.is_group, c.admin_id, c.latest_message_id, c.direct_key, c.created_at, c.updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(s scanner) (*models.Chat, error) {
	c := &models.Chat{}
	var admin, latest, key sql.NullString

	err := s.Scan(&c.ID, &c.Name, &c.IsGroup, &admin, &latest, &key, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.AdminID = admin.String
	c.LatestMessageID = latest.String
	c.DirectKey = key.String

	return c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts the chat and its members in the given order. Call it inside
// a transaction. A second direct chat for the same pair yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, chat *models.Chat) error {
	query :=
		`INSERT INTO chats (id, name, is_group, admin_id, direct_key)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		chat.ID, chat.Name, chat.IsGroup, nullable(chat.AdminID), nullable(chat.DirectKey)).
		Scan(&chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("chat %s: %w", chat.DirectKey, common.ErrorAlreadyExists)
		}
		return dbError(err)
	}

	for _, m := range chat.Members {
		if err := r.AddMember(ctx, chat.ID, m); err != nil {
			return err
		}
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	return r.getOne(ctx, `c.id = $1`, id)
}

func (r *PostgresRepository) GetDirect(ctx context.Context, key string) (*models.Chat, error) {
	return r.getOne(ctx, `c.direct_key = $1`, key)
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats c WHERE ` + where

	chat, err := scanChat(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError(err)
	}

	if err := r.loadMembers(ctx, []*models.Chat{chat}); err != nil {
		return nil, err
	}

	return chat, nil
}

// ListByMember returns the user's chats, most recently updated first.
func (r *PostgresRepository) ListByMember(ctx context.Context, userID string) ([]*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats c
		 JOIN chat_members m ON m.chat_id = c.id
		 WHERE m.user_id = $1
		 ORDER BY c.updated_at DESC, c.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var result []*models.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, dbError(err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	rows.Close()

	if err := r.loadMembers(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) loadMembers(ctx context.Context, chats []*models.Chat) error {
	if len(chats) == 0 {
		return nil
	}

	byID := make(map[string]*models.Chat, len(chats))
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	query :=
		`SELECT chat_id, user_id FROM chat_members
		 WHERE chat_id = ANY($1::uuid[])
		 ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return dbError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var chatID, userID string
		if err := rows.Scan(&chatID, &userID); err != nil {
			return dbError(err)
		}
		if c, ok := byID[chatID]; ok {
			c.Members = append(c.Members, userID)
		}
	}

	if err := rows.Err(); err != nil {
		return dbError(err)
	}

	return nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&ok); err != nil {
		return false, dbError(err)
	}

	return ok, nil
}

// AddMember appends userID to the chat. An existing member yields
// common.ErrorAlreadyExists.
func (r *PostgresRepository) AddMember(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)`, chatID, userID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("user %s already in chat: %w", userID, common.ErrorAlreadyExists)
		}
		return dbError(err)
	}
	return nil
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, chatID, userID string) error {
	return r.exec(ctx, `DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
}

func (r *PostgresRepository) Rename(ctx context.Context, chatID, name string) error {
	return r.exec(ctx, `UPDATE chats SET name = $2, updated_at = now() WHERE id = $1`, chatID, name)
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, chatID, adminID string) error {
	return r.exec(ctx, `UPDATE chats SET admin_id = $2, updated_at = now() WHERE id = $1`, chatID, adminID)
}

// SetLatestMessage points the chat at messageID and bumps updated_at.
func (r *PostgresRepository) SetLatestMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE chats SET latest_message_id = $2, updated_at = $3 WHERE id = $1`,
		chatID, messageID, at)
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

// dbError wraps a driver failure. Ids that are not valid uuids fail the cast
// in Postgres and are reported as missing rows.
func dbError(err error) error {
	if dbx.IsInvalidText(err) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}
