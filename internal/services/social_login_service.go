package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/auth/social"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/crypto"
	"github.com/charlesng35/authgate/pkg/metrics"
)

// ErrIdentityIncomplete is returned when the provider response lacks the
// attributes needed to provision an account.
var ErrIdentityIncomplete = errors.New("social login: provider identity is incomplete")

// SocialLoginService links provider identities to local accounts, creating
// accounts on first login.
type SocialLoginService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSocialLoginService constructs a social login service.
func NewSocialLoginService(db *gorm.DB, clock func() time.Time) (*SocialLoginService, error) {
	if db == nil {
		return nil, errors.New("social login service: db is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &SocialLoginService{db: db, now: clock}, nil
}

// Resolve maps a verified provider identity to a local user. Existing links
// are reused, otherwise the identity is attached to the account matching its
// email address, and failing that a new account is provisioned.
func (s *SocialLoginService) Resolve(ctx context.Context, identity *social.Identity) (*models.User, error) {
	if identity == nil || strings.TrimSpace(identity.Subject) == "" || strings.TrimSpace(identity.Provider) == "" {
		metrics.SocialLogins.WithLabelValues("google", "failure").Inc()
		return nil, ErrIdentityIncomplete
	}

	var link models.Identity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", identity.Provider, identity.Subject).
		Take(&link).Error
	if err == nil {
		var user models.User
		if err := s.db.WithContext(ctx).Take(&user, "id = ?", link.UserID).Error; err != nil {
			return nil, fmt.Errorf("social login service: find linked user: %w", err)
		}
		metrics.SocialLogins.WithLabelValues(identity.Provider, "success").Inc()
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("social login service: find identity: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		metrics.SocialLogins.WithLabelValues(identity.Provider, "failure").Inc()
		return nil, ErrIdentityIncomplete
	}

	user, err := s.findOrCreateUser(ctx, identity, email)
	if err != nil {
		metrics.SocialLogins.WithLabelValues(identity.Provider, "failure").Inc()
		return nil, err
	}

	newLink := models.Identity{
		UserID:   user.ID,
		Provider: identity.Provider,
		Subject:  identity.Subject,
		Email:    email,
	}
	if err := s.db.WithContext(ctx).Create(&newLink).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("social login service: link identity: %w", err)
		}
	}

	metrics.SocialLogins.WithLabelValues(identity.Provider, "success").Inc()
	return user, nil
}

func (s *SocialLoginService) findOrCreateUser(ctx context.Context, identity *social.Identity, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = ?", email).Take(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("social login service: find user by email: %w", err)
	}

	// Social accounts never authenticate with a password; store an unusable
	// random credential so the column stays non-empty.
	random, err := crypto.GenerateToken(32)
	if err != nil {
		return nil, fmt.Errorf("social login service: generate password: %w", err)
	}
	hashed, err := crypto.HashPassword(random)
	if err != nil {
		return nil, fmt.Errorf("social login service: hash password: %w", err)
	}

	username, err := s.availableUsername(ctx, email)
	if err != nil {
		return nil, err
	}

	user = models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		IsActive:  true,
	}
	if identity.EmailVerified {
		now := s.now()
		user.EmailVerifiedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("social login service: create user: %w", err)
	}

	return &user, nil
}

// availableUsername derives a username from the email local part, adding a
// numeric suffix on collision.
func (s *SocialLoginService) availableUsername(ctx context.Context, email string) (string, error) {
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}

	candidate := base
	for i := 1; i < 100; i++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("LOWER(username) = LOWER(?)", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("social login service: check username: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}

	return "", errors.New("social login service: could not derive a unique username")
}
