package chats

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	GetDirect(ctx context.Context, key string) (*models.Chat, error)
	ListByMember(ctx context.Context, userID string) ([]*models.Chat, error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	AddMember(ctx context.Context, chatID, userID string) error
	RemoveMember(ctx context.Context, chatID, userID string) error
	Rename(ctx context.Context, chatID, name string) error
	SetAdmin(ctx context.Context, chatID, adminID string) error
	SetLatestMessage(ctx context.Context, chatID, messageID string, at time.Time) error
}
