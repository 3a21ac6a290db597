package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/crypto"
	"github.com/charlesng35/authgate/pkg/metrics"
)

var (
	// ErrUsernameTaken reports a registration against an existing username.
	ErrUsernameTaken = errors.New("registration: username already exists")
	// ErrEmailTaken reports a registration against an existing email address.
	ErrEmailTaken = errors.New("registration: email already exists")
)

// RegisterInput captures the details required to register a new account.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegistrationService creates local accounts and kicks off email verification.
type RegistrationService struct {
	db           *gorm.DB
	verification *EmailVerificationService
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(db *gorm.DB, verification *EmailVerificationService) (*RegistrationService, error) {
	if db == nil {
		return nil, errors.New("registration service: db is required")
	}
	if verification == nil {
		return nil, errors.New("registration service: verification service is required")
	}

	return &RegistrationService{db: db, verification: verification}, nil
}

// Register creates a new inactive-until-verified account and sends the
// verification email. Uniqueness collisions are reported per field so the
// caller can surface them against the offending input.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" || input.Password == "" {
		return nil, errors.New("registration service: username, email and password are required")
	}

	// Look up the colliding column ourselves; unique constraint errors do
	// not say which index fired on every database vendor.
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = LOWER(?)", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("registration service: check username: %w", err)
	}
	if count > 0 {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, ErrUsernameTaken
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("registration service: check email: %w", err)
	}
	if count > 0 {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, ErrEmailTaken
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("registration service: hash password: %w", err)
	}

	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  hashed,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		IsActive:  true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		metrics.Registrations.WithLabelValues("failure").Inc()
		if isUniqueConstraintError(err) {
			// A concurrent registration won the race between check and insert.
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("registration service: create user: %w", err)
	}

	if _, err := s.verification.SendVerification(ctx, user); err != nil {
		return nil, fmt.Errorf("registration service: %w", err)
	}

	metrics.Registrations.WithLabelValues("success").Inc()

	return user, nil
}
