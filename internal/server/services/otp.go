package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatterbox/internal/common"
	"github.com/dmitrijs2005/chatterbox/internal/dbx"
	"github.com/dmitrijs2005/chatterbox/internal/logging"
	"github.com/dmitrijs2005/chatterbox/internal/server/config"
	"github.com/dmitrijs2005/chatterbox/internal/server/mail"
	"github.com/dmitrijs2005/chatterbox/internal/server/models"
	"github.com/dmitrijs2005/chatterbox/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// OTPLength is the number of digits in a passcode.
const OTPLength = 4

// Mailer delivers passcode mails.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// VerifyResult is returned by a successful Verify. ResetToken is set only for
// password-reset passcodes and authorizes exactly one password change.
type VerifyResult struct {
	Purpose    string
	ResetToken string
}

// OTPService issues and checks one-time passcodes for identity verification
// (IV) and password reset (FP), and applies password resets.
type OTPService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailer      Mailer
	otpTTL      time.Duration
	resetTTL    time.Duration
	log         logging.Logger
	now         func() time.Time
}

func NewOTPService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, mailer Mailer, log logging.Logger) *OTPService {
	return &OTPService{
		db:          db,
		repomanager: m,
		mailer:      mailer,
		otpTTL:      cfg.OTPValidityDuration,
		resetTTL:    cfg.ResetGrantValidityDuration,
		log:         log.With("module", "otp"),
		now:         time.Now,
	}
}

func mailFor(purpose string, user *models.User, code string, ttl time.Duration) mail.Message {
	msg := mail.Message{To: user.Email, Name: user.Name, Code: code}
	if purpose == common.OTPPurposePasswordReset {
		msg.Subject = "Reset Password"
		msg.Intro = fmt.Sprintf("Want to reset your password? Kindly enter the OTP to reset your password. OTP will expire in %s.", ttl)
	} else {
		msg.Subject = "Confirm your identity"
		msg.Intro = fmt.Sprintf("Please verify your email. Kindly enter the OTP to verify your email. OTP will expire in %s.", ttl)
	}
	return msg
}

// Request issues a new passcode for (email, purpose) and mails it. The user
// must exist. Mail failures yield common.ErrorExternal.
func (s *OTPService) Request(ctx context.Context, email, purpose string) error {
	email = common.NormalizeEmail(email)

	if err := validatePurpose(purpose); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user not found: %w", common.ErrorNotFound)
		}
		return fmt.Errorf("error loading user: %w", err)
	}

	return s.issue(ctx, user, purpose)
}

// SendVerification mails an identity passcode. It reports false without
// sending anything when the user is already verified.
func (s *OTPService) SendVerification(ctx context.Context, email string) (bool, error) {
	email = common.NormalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, fmt.Errorf("user not found: %w", common.ErrorNotFound)
		}
		return false, fmt.Errorf("error loading user: %w", err)
	}

	if user.Verified {
		return false, nil
	}

	if err := s.issue(ctx, user, common.OTPPurposeIdentity); err != nil {
		return false, err
	}
	return true, nil
}

func (s *OTPService) issue(ctx context.Context, user *models.User, purpose string) error {
	code, err := common.MakeNumericCode(OTPLength)
	if err != nil {
		return fmt.Errorf("error generating otp: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing otp: %w", err)
	}

	now := s.now()
	otp := &models.OTP{
		ID:        uuid.NewString(),
		Email:     user.Email,
		Purpose:   purpose,
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.otpTTL),
	}

	if err := s.repomanager.OTPs(s.db).Create(ctx, otp); err != nil {
		return fmt.Errorf("error storing otp: %w", err)
	}

	if err := s.mailer.Send(ctx, mailFor(purpose, user, code, s.otpTTL)); err != nil {
		s.log.Error(ctx, "otp mail failed", "purpose", purpose, "error", err)
		return fmt.Errorf("failed to send mail: %w", common.ErrorExternal)
	}

	s.log.Info(ctx, "otp sent", "purpose", purpose, "user_id", user.ID)
	return nil
}

// Verify checks code against the newest passcode for (email, purpose).
// Identity passcodes mark the user verified; password-reset passcodes yield a
// reset token. Either way the consumed passcodes are deleted.
func (s *OTPService) Verify(ctx context.Context, email, code, purpose string) (*VerifyResult, error) {
	email = common.NormalizeEmail(email)

	if err := validatePurpose(purpose); err != nil {
		return nil, err
	}
	if err := required("otp", code); err != nil {
		return nil, err
	}

	otp, err := s.repomanager.OTPs(s.db).Latest(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrOTPExpired
		}
		return nil, fmt.Errorf("error loading otp: %w", err)
	}

	if otp.Expired(s.now()) {
		return nil, common.ErrOTPExpired
	}
	if bcrypt.CompareHashAndPassword(otp.CodeHash, []byte(code)) != nil {
		return nil, common.ErrOTPInvalid
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("user not found: %w", common.ErrorNotFound)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if purpose == common.OTPPurposeIdentity {
		if user.Verified {
			return nil, common.ErrUserAlreadyVerified
		}
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repomanager.Users(tx).SetVerified(ctx, email); err != nil {
				return err
			}
			_, err := s.repomanager.OTPs(tx).DeleteFor(ctx, email, purpose)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("error verifying user: %w", err)
		}
		s.log.Info(ctx, "user verified", "user_id", user.ID)
		return &VerifyResult{Purpose: purpose}, nil
	}

	token, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("error generating reset token: %w", err)
	}

	now := s.now()
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.OTPs(tx).DeleteFor(ctx, email, purpose); err != nil {
			return err
		}
		return s.repomanager.Resets(tx).Create(ctx, &models.PasswordReset{
			TokenHash: hashToken(token),
			Email:     email,
			CreatedAt: now,
			ExpiresAt: now.Add(s.resetTTL),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error issuing reset grant: %w", err)
	}

	return &VerifyResult{Purpose: purpose, ResetToken: token}, nil
}

// ResetPassword sets a new password using a reset token from Verify. The
// token is consumed and every session of the user is revoked.
func (s *OTPService) ResetPassword(ctx context.Context, email, resetToken, password string) error {
	email = common.NormalizeEmail(email)

	if err := required("resetToken", resetToken); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		grantEmail, err := s.repomanager.Resets(tx).Consume(ctx, hashToken(resetToken), s.now())
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrResetGrantInvalid
			}
			return err
		}
		if grantEmail != email {
			return common.ErrResetGrantInvalid
		}
		return s.repomanager.Users(tx).ResetPassword(ctx, email, hash)
	})
}

// Sweep deletes expired passcodes and reset grants.
func (s *OTPService) Sweep(ctx context.Context) (int64, error) {
	now := s.now()

	otps, err := s.repomanager.OTPs(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	grants, err := s.repomanager.Resets(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return otps, err
	}
	return otps + grants, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *OTPService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error(ctx, "otp sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Debug(ctx, "expired otps swept", "deleted", n)
			}
		}
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
