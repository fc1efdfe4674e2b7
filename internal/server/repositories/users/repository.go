package users

import (
	"context"

	"github.com/dmitrijs2005/chatterbox/internal/server/auth"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Search(ctx context.Context, keyword string, excludeID string) ([]*models.User, error)
	SetVerified(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email string, passwordHash []byte) error
	UpdatePic(ctx context.Context, id string, pic string) error
	LockSessions(ctx context.Context, id string) (auth.Sessions, error)
	SetSessions(ctx context.Context, id string, sessions auth.Sessions) error
}
