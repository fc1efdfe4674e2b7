package otps

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, otp *models.OTP) error
	Latest(ctx context.Context, email, purpose string) (*models.OTP, error)
	DeleteFor(ctx context.Context, email, purpose string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
