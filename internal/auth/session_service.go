package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/metrics"
)

// DefaultSessionTTL is the fallback session lifetime.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	SessionTTL time.Duration
	Clock      func() time.Time
}

// SessionMetadata captures contextual information about the client.
type SessionMetadata struct {
	IPAddress string
	UserAgent string
}

var (
	// ErrSessionNotFound indicates that no session matches the provided identifier.
	ErrSessionNotFound = errors.New("session: not found")
	// ErrSessionRevoked marks a session that has been revoked by logout or a password reset.
	ErrSessionRevoked = errors.New("session: revoked")
	// ErrSessionExpired signals that a session has reached its expiry.
	ErrSessionExpired = errors.New("session: expired")
)

// SessionService manages creation, validation, and revocation of user sessions.
type SessionService struct {
	db  *gorm.DB
	jwt *JWTService
	ttl time.Duration
	now func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database and JWT service.
func NewSessionService(db *gorm.DB, jwtService *JWTService, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("session service: jwt service is required")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:  db,
		jwt: jwtService,
		ttl: ttl,
		now: clock,
	}, nil
}

// Issue creates a new session row and returns the signed login key bound to it.
func (s *SessionService) Issue(userID string, meta SessionMetadata) (string, *models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, errors.New("session service: user id is required")
	}

	now := s.now()

	session := &models.Session{
		UserID:     userID,
		IPAddress:  strings.TrimSpace(meta.IPAddress),
		UserAgent:  strings.TrimSpace(meta.UserAgent),
		ExpiresAt:  now.Add(s.ttl),
		LastUsedAt: now,
	}

	if err := s.db.Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	key, err := s.jwt.GenerateKey(userID, session.ID)
	if err != nil {
		return "", nil, fmt.Errorf("session service: generate key: %w", err)
	}

	return key, session, nil
}

// Validate loads the session and ensures it is still live. Revocation checks
// run on every request so logout takes effect immediately even though the
// login key itself remains well formed until its expiry.
func (s *SessionService) Validate(sessionID string) (*models.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := s.db.Take(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	now := s.now()

	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if session.ExpiresAt.Before(now) {
		return nil, ErrSessionExpired
	}

	if err := s.db.Model(&session).Update("last_used_at", now).Error; err != nil {
		return nil, fmt.Errorf("session service: touch session: %w", err)
	}
	session.LastUsedAt = now

	return &session, nil
}

// RevokeSession marks a session as revoked, invalidating the key bound to it.
func (s *SessionService) RevokeSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionNotFound
	}

	result := s.db.Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", s.now())

	if result.Error != nil {
		return fmt.Errorf("session service: revoke session: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}

	metrics.ActiveSessions.Sub(float64(result.RowsAffected))

	return nil
}

// RevokeUserSessions revokes every live session belonging to a user. It is
// called after a password reset so stolen keys stop working.
func (s *SessionService) RevokeUserSessions(userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, errors.New("session service: user id is required")
	}

	result := s.db.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now())

	if result.Error != nil {
		return 0, fmt.Errorf("session service: revoke user sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// CleanupExpired deletes sessions whose expiry or revocation predates the cutoff.
func (s *SessionService) CleanupExpired(cutoff time.Time) (int64, error) {
	result := s.db.
		Where("expires_at < ?", cutoff).
		Or("revoked_at IS NOT NULL AND revoked_at < ?", cutoff).
		Delete(&models.Session{})

	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup: %w", result.Error)
	}

	return result.RowsAffected, nil
}
