package messages

import (
	"context"

	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByIDs(ctx context.Context, ids []string) ([]*models.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]*models.Message, error)
	ListUnread(ctx context.Context, userID string) ([]*models.Message, error)
	MarkRead(ctx context.Context, chatID, userID string) (int64, error)
}
