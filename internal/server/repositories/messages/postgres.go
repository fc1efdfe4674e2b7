// Package messages stores the per-chat message log and its read receipts.
package messages

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

const messageColumns = `m.id, m.chat_id, m.sender_id, m.content, m.created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) error {
	query :=
		`INSERT INTO messages (id, chat_id, sender_id, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, msg.ID, msg.ChatID, msg.SenderID, msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		return dbError(err)
	}

	return nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = ANY($1::uuid[])`

	return r.list(ctx, query, ids)
}

// ListByChat returns the chat's messages oldest first.
func (r *PostgresRepository) ListByChat(ctx context.Context, chatID string) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m
		 WHERE m.chat_id = $1
		 ORDER BY m.created_at, m.id`

	return r.list(ctx, query, chatID)
}

// ListUnread returns messages from the user's chats that someone else sent
// and the user has not read yet, oldest first.
func (r *PostgresRepository) ListUnread(ctx context.Context, userID string) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m
		 JOIN chat_members cm ON cm.chat_id = m.chat_id AND cm.user_id = $1
		 WHERE m.sender_id <> $1
		   AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $1)
		 ORDER BY m.created_at, m.id`

	return r.list(ctx, query, userID)
}

// MarkRead adds userID to the read-set of every message in the chat sent by
// someone else. Already-read messages are left alone, so repeating the call
// changes nothing. It returns the number of new receipts.
func (r *PostgresRepository) MarkRead(ctx context.Context, chatID, userID string) (int64, error) {
	query :=
		`INSERT INTO message_reads (message_id, user_id)
		 SELECT m.id, $2 FROM messages m
		 WHERE m.chat_id = $1 AND m.sender_id <> $2
		 ON CONFLICT DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, chatID, userID)
	if err != nil {
		return 0, dbError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbError(err)
	}

	return n, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, dbError(err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	rows.Close()

	if err := r.loadReaders(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) loadReaders(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	byID := make(map[string]*models.Message, len(msgs))
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	query :=
		`SELECT message_id, user_id FROM message_reads
		 WHERE message_id = ANY($1::uuid[])
		 ORDER BY read_at, user_id`

	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return dbError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return dbError(err)
		}
		if m, ok := byID[messageID]; ok {
			m.ReadBy = append(m.ReadBy, userID)
		}
	}

	if err := rows.Err(); err != nil {
		return dbError(err)
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
