package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/crypto"
	"github.com/charlesng35/authgate/pkg/logger"
	"github.com/charlesng35/authgate/pkg/mail"
	"github.com/charlesng35/authgate/pkg/metrics"
)

const (
	defaultResetExpiry     = 24 * time.Hour
	defaultResetTokenBytes = 48
)

// ErrResetTokenInvalid covers unknown, expired, and already consumed reset tokens.
// Callers get no distinction between the three cases.
var ErrResetTokenInvalid = errors.New("password reset: invalid token")

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetBaseURL sets the base URL used in reset links.
func WithResetBaseURL(url string) ResetOption {
	return func(s *PasswordResetService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithResetExpiry overrides the token lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PasswordResetService issues and consumes the single-use tokens mailed out
// for password recovery.
type PasswordResetService struct {
	db       *gorm.DB
	mailer   mail.Mailer
	sessions *auth.SessionService
	baseURL  string
	expiry   time.Duration
	now      func() time.Time
}

// NewPasswordResetService constructs a reset service with the provided dependencies.
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, sessions *auth.SessionService, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}
	if sessions == nil {
		return nil, errors.New("password reset service: session service is required")
	}

	service := &PasswordResetService{
		db:       db,
		mailer:   mailer,
		sessions: sessions,
		expiry:   defaultResetExpiry,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// RequestReset mails a reset link when the address belongs to a known user.
// It reports success either way so callers cannot probe which addresses are
// registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("password reset service: email is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.WithModule("password_reset").Debug("reset requested for unknown email")
		metrics.PasswordResets.WithLabelValues("request", "unknown_email").Inc()
		return nil
	}
	if err != nil {
		return fmt.Errorf("password reset service: find user: %w", err)
	}

	token, err := crypto.GenerateToken(defaultResetTokenBytes)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	now := s.now()
	reset := models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: now.Add(s.expiry),
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND used_at IS NULL", user.ID).
		Delete(&models.PasswordResetToken{}).Error; err != nil {
		return fmt.Errorf("password reset service: cleanup existing: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(&reset).Error; err != nil {
		return fmt.Errorf("password reset service: create token: %w", err)
	}

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{user.Email},
			Subject: "Password reset requested",
			Body:    s.resetBody(s.resetLink(user.ID, token)),
		}
		// Delivery failures are logged, never surfaced, so the response body
		// stays identical for known and unknown addresses.
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil {
			if !errors.Is(mailErr, mail.ErrSMTPDisabled) {
				logger.WithModule("password_reset").Warn("reset email delivery failed", zap.Error(mailErr))
				metrics.PasswordResets.WithLabelValues("request", "mail_failure").Inc()
			}
		} else {
			metrics.EmailsSent.WithLabelValues("password_reset").Inc()
		}
	}

	metrics.PasswordResets.WithLabelValues("request", "success").Inc()

	return nil
}

// ConfirmReset consumes a reset token, stores the new password, and revokes
// every live session for the user so stolen keys stop working.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, userID, token, newPassword string) error {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return ErrResetTokenInvalid
	}
	if newPassword == "" {
		return errors.New("password reset service: new password is required")
	}

	var reset models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND token_hash = ?", userID, crypto.HashToken(token)).
		Take(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.PasswordResets.WithLabelValues("confirm", "failure").Inc()
		return ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("password reset service: find token: %w", err)
	}

	now := s.now()
	if reset.UsedAt != nil || reset.ExpiresAt.Before(now) {
		metrics.PasswordResets.WithLabelValues("confirm", "failure").Inc()
		return ErrResetTokenInvalid
	}

	result := s.db.WithContext(ctx).
		Model(&models.PasswordResetToken{}).
		Where("id = ? AND used_at IS NULL", reset.ID).
		Update("used_at", now)
	if result.Error != nil {
		return fmt.Errorf("password reset service: consume token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		metrics.PasswordResets.WithLabelValues("confirm", "failure").Inc()
		return ErrResetTokenInvalid
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("password", hashed).Error; err != nil {
		return fmt.Errorf("password reset service: update password: %w", err)
	}

	if _, err := s.sessions.RevokeUserSessions(userID); err != nil {
		return fmt.Errorf("password reset service: %w", err)
	}

	metrics.PasswordResets.WithLabelValues("confirm", "success").Inc()

	return nil
}

// CleanupExpired deletes reset tokens whose expiry predates the cutoff.
func (s *PasswordResetService) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("password reset service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *PasswordResetService) resetLink(userID, token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s/auth/password/reset/confirm/?uid=%s&token=%s", s.baseURL, userID, token)
}

func (s *PasswordResetService) resetBody(link string) string {
	return fmt.Sprintf("A password reset was requested for your account.\n\nVisit the link below to choose a new password:\n%s\n\nIf you did not request a reset, you can ignore this message.\n", link)
}
