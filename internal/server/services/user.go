// Package services contains server-side business logic: accounts and
// sessions, one-time passcodes, chats and messages. Services talk to storage
// only through the repository manager and return common.* sentinels.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/auth"
	"github.com/dmitrijs2005/chatterbox/internal/server/avatars"
	"github.com/dmitrijs2005/chatterbox/internal/server/config"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AvatarPresigner hands out upload URLs for profile pictures.
type AvatarPresigner interface {
	PresignUpload(ctx context.Context, userID, contentType string) (*avatars.Upload, error)
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Email  string
	Token  string
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
	Pic      string
}

// UserService handles signup, login/logout with the bounded session list,
// token validation, profile lookups, user search and profile pictures.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	jwtSecret     []byte
	sessionWindow time.Duration
	maxSessions   int
	avatars       AvatarPresigner
	log           logging.Logger
	now           func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
// avatars may be nil, in which case picture uploads are reported as an
// external failure.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, avatars AvatarPresigner, log logging.Logger) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		jwtSecret:     []byte(cfg.SecretKey),
		sessionWindow: cfg.SessionValidityDuration,
		maxSessions:   cfg.MaxSessions,
		avatars:       avatars,
		log:           log.With("module", "users"),
		now:           time.Now,
	}
}

// Signup creates an unverified user. A taken email yields
// common.ErrorAlreadyExists.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Email = common.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	for _, err := range []error{required("name", in.Name), required("email", in.Email), required("password", in.Password)} {
		if err != nil {
			return nil, err
		}
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	pic := strings.TrimSpace(in.Pic)
	if pic == "" {
		pic = models.DefaultPic
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Pic:          pic,
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("user already exists with this email: %w", common.ErrorAlreadyExists)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.log.Info(ctx, "user signed up", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and opens a new session. Unknown emails and wrong
// passwords both yield common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	email = common.NormalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidCredentials
		}
		return "", fmt.Errorf("error loading user: %w", err)
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return "", common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.sessionWindow)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		sessions, err := repo.LockSessions(ctx, user.ID)
		if err != nil {
			return err
		}
		return repo.SetSessions(ctx, user.ID, sessions.Add(token, s.now(), s.sessionWindow, s.maxSessions))
	})
	if err != nil {
		return "", fmt.Errorf("error storing session: %w", err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return token, nil
}

// Logout removes token from the user's sessions. Unknown tokens are ignored.
func (s *UserService) Logout(ctx context.Context, userID, token string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		sessions, err := repo.LockSessions(ctx, userID)
		if err != nil {
			return err
		}
		rest, found := sessions.Remove(token)
		if !found {
			return nil
		}
		return repo.SetSessions(ctx, userID, rest)
	})
}

// Authenticate validates a bearer token: the signature and expiry must hold
// and the token must still be one of the user's live sessions.
func (s *UserService) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if !user.Sessions.Contains(token, s.now(), s.sessionWindow) {
		return nil, fmt.Errorf("session revoked: %w", common.ErrInvalidToken)
	}

	return &Identity{UserID: user.ID, Email: user.Email, Token: token}, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*ProfileView, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newProfileView(user), nil
}

// Search lists users whose name or email contains keyword, caller excluded.
func (s *UserService) Search(ctx context.Context, callerID, keyword string) ([]UserView, error) {
	users, err := s.repomanager.Users(s.db).Search(ctx, strings.TrimSpace(keyword), callerID)
	if err != nil {
		return nil, err
	}

	out := make([]UserView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	return out, nil
}

// RequestAvatarUpload presigns an upload for a new profile picture and points
// the profile at the picture's final URL.
func (s *UserService) RequestAvatarUpload(ctx context.Context, userID, contentType string) (*avatars.Upload, error) {
	if !avatars.IsAllowedContentType(contentType) {
		return nil, fmt.Errorf("unsupported content type %q: %w", contentType, common.ErrorValidation)
	}
	if s.avatars == nil {
		return nil, fmt.Errorf("object storage not configured: %w", common.ErrorExternal)
	}

	up, err := s.avatars.PresignUpload(ctx, userID, contentType)
	if err != nil {
		s.log.Error(ctx, "presign failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to prepare upload: %w", common.ErrorExternal)
	}

	if err := s.repomanager.Users(s.db).UpdatePic(ctx, userID, up.PublicURL); err != nil {
		return nil, err
	}

	return up, nil
}
