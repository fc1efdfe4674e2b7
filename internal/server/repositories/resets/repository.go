package resets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, grant *models.PasswordReset) error
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
