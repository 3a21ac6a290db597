package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/crypto"
	"github.com/charlesng35/authgate/pkg/mail"
	"github.com/charlesng35/authgate/pkg/metrics"
)

const (
	defaultVerificationExpiry     = 3 * 24 * time.Hour
	defaultVerificationTokenBytes = 48
)

var (
	// ErrVerificationNotFound indicates the key does not exist.
	ErrVerificationNotFound = errors.New("email verification: not found")
	// ErrVerificationExpired indicates the verification key has expired.
	ErrVerificationExpired = errors.New("email verification: expired")
	// ErrVerificationUsed signals that the verification key has already been consumed.
	ErrVerificationUsed = errors.New("email verification: already used")
)

// VerificationOption customises the EmailVerificationService.
type VerificationOption func(*EmailVerificationService)

// WithVerificationBaseURL sets the base URL used in verification links.
func WithVerificationBaseURL(url string) VerificationOption {
	return func(s *EmailVerificationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithVerificationExpiry overrides the key lifetime.
func WithVerificationExpiry(d time.Duration) VerificationOption {
	return func(s *EmailVerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *EmailVerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// EmailVerificationService manages the single-use keys mailed out after
// registration. Only a digest of each key is stored.
type EmailVerificationService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	now     func() time.Time
}

// NewEmailVerificationService constructs a verification service with the provided dependencies.
func NewEmailVerificationService(db *gorm.DB, mailer mail.Mailer, opts ...VerificationOption) (*EmailVerificationService, error) {
	if db == nil {
		return nil, errors.New("email verification service: db is required")
	}

	service := &EmailVerificationService{
		db:     db,
		mailer: mailer,
		expiry: defaultVerificationExpiry,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// SendVerification issues a fresh key for the user and dispatches the
// confirmation email. Any previous pending key for the user is discarded.
func (s *EmailVerificationService) SendVerification(ctx context.Context, user *models.User) (string, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return "", errors.New("email verification service: user is required")
	}

	key, err := crypto.GenerateToken(defaultVerificationTokenBytes)
	if err != nil {
		return "", fmt.Errorf("email verification service: generate key: %w", err)
	}

	now := s.now()
	verification := models.EmailVerification{
		UserID:    user.ID,
		TokenHash: crypto.HashToken(key),
		ExpiresAt: now.Add(s.expiry),
	}

	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND verified_at IS NULL", user.ID).
		Delete(&models.EmailVerification{}).Error; err != nil {
		return "", fmt.Errorf("email verification service: cleanup existing: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(&verification).Error; err != nil {
		return "", fmt.Errorf("email verification service: create key: %w", err)
	}

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{user.Email},
			Subject: "Confirm your email address",
			Body:    s.verificationBody(s.verificationLink(key)),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil {
			if !errors.Is(mailErr, mail.ErrSMTPDisabled) {
				return "", fmt.Errorf("email verification service: send email: %w", mailErr)
			}
		} else {
			metrics.EmailsSent.WithLabelValues("verification").Inc()
		}
	}

	return key, nil
}

// Confirm consumes a verification key and marks the owning user's email as
// verified. Each key works exactly once; replays fail even under concurrent
// confirmation attempts because consumption is a guarded update.
func (s *EmailVerificationService) Confirm(ctx context.Context, key string) (*models.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrVerificationNotFound
	}

	var verification models.EmailVerification
	err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(key)).
		Take(&verification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("email verification service: find key: %w", err)
	}

	now := s.now()
	if verification.VerifiedAt != nil {
		return nil, ErrVerificationUsed
	}
	if verification.ExpiresAt.Before(now) {
		return nil, ErrVerificationExpired
	}

	result := s.db.WithContext(ctx).
		Model(&models.EmailVerification{}).
		Where("id = ? AND verified_at IS NULL", verification.ID).
		Update("verified_at", now)
	if result.Error != nil {
		return nil, fmt.Errorf("email verification service: consume key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrVerificationUsed
	}

	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "id = ?", verification.UserID).Error; err != nil {
		return nil, fmt.Errorf("email verification service: find user: %w", err)
	}

	if user.EmailVerifiedAt == nil {
		if err := s.db.WithContext(ctx).Model(&user).Update("email_verified_at", now).Error; err != nil {
			return nil, fmt.Errorf("email verification service: mark user verified: %w", err)
		}
		user.EmailVerifiedAt = &now
	}

	return &user, nil
}

// CleanupExpired deletes verification rows whose expiry predates the cutoff.
func (s *EmailVerificationService) CleanupExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.EmailVerification{})
	if result.Error != nil {
		return 0, fmt.Errorf("email verification service: cleanup: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *EmailVerificationService) verificationLink(key string) string {
	if s.baseURL == "" {
		return key
	}
	return fmt.Sprintf("%s/auth/registration/account-confirm-email/%s/", s.baseURL, key)
}

func (s *EmailVerificationService) verificationBody(link string) string {
	return fmt.Sprintf("Welcome!\n\nPlease confirm your email address by visiting the link below:\n%s\n\nIf you did not create an account, you can ignore this message.\n", link)
}
