package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/authgate/internal/app"
	iauth "github.com/charlesng35/authgate/internal/auth"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService inspects the running configuration for weak or risky auth
// settings. It is evaluated once at startup so misconfiguration is visible
// in the logs before the first request arrives.
type AuditService struct {
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. All dependencies are optional; missing
// inputs degrade specific checks to warnings.
func NewAuditService(jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{
		jwt: jwt,
		cfg: cfg,
		now: time.Now,
	}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run() Result {
	checks := []Check{
		s.checkJWTSecret(),
		s.checkSessionTTL(),
		s.checkEmailDelivery(),
		s.checkEmailVerification(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}

	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkJWTSecret() Check {
	if s.jwt == nil {
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     "JWT service not initialised, unable to assess signing secret strength.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()

	switch {
	case length == 0:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < 32:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of AUTHGATE_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      "jwt_secret_strength",
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkSessionTTL() Check {
	if s.cfg == nil {
		return Check{
			ID:          "session_ttl",
			Status:      StatusWarn,
			Message:     "Configuration not loaded, unable to evaluate session lifetime.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	ttl := s.cfg.Auth.Session.TTL
	if ttl <= 0 {
		return Check{
			ID:          "session_ttl",
			Status:      StatusWarn,
			Message:     "Session TTL is not configured; using the default duration.",
			Remediation: "Set AUTHGATE_AUTH_SESSION_TTL to control session lifetime.",
		}
	}

	const maxRecommended = 30 * 24 * time.Hour

	if ttl > maxRecommended {
		return Check{
			ID:          "session_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Session TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommended),
			Remediation: "Reduce the session TTL to 30 days or lower to limit key exposure.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      "session_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("Session TTL is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkEmailDelivery() Check {
	if s.cfg == nil {
		return Check{
			ID:          "smtp_delivery",
			Status:      StatusWarn,
			Message:     "Configuration not loaded, unable to verify email delivery settings.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	smtp := s.cfg.Email.SMTP
	if !smtp.Enabled {
		return Check{
			ID:          "smtp_delivery",
			Status:      StatusWarn,
			Message:     "SMTP delivery is disabled; verification and password reset emails will not be sent.",
			Remediation: "Enable SMTP and configure a mail host so account emails reach users.",
		}
	}

	if strings.TrimSpace(smtp.Host) == "" {
		return Check{
			ID:          "smtp_delivery",
			Status:      StatusFail,
			Message:     "SMTP is enabled but no host is configured.",
			Remediation: "Set AUTHGATE_EMAIL_SMTP_HOST to a reachable mail server.",
		}
	}

	return Check{
		ID:      "smtp_delivery",
		Status:  StatusPass,
		Message: fmt.Sprintf("SMTP delivery configured via %s.", smtp.Host),
	}
}

func (s *AuditService) checkEmailVerification() Check {
	if s.cfg == nil {
		return Check{
			ID:          "require_verified_email",
			Status:      StatusWarn,
			Message:     "Configuration not loaded, unable to evaluate email verification policy.",
			Remediation: "Load configuration before running the security audit.",
		}
	}

	if !s.cfg.Auth.Local.RequireVerifiedEmail {
		return Check{
			ID:          "require_verified_email",
			Status:      StatusWarn,
			Message:     "Login does not require a verified email address.",
			Remediation: "Enable auth.local.require_verified_email so unverified accounts cannot log in.",
		}
	}

	return Check{
		ID:      "require_verified_email",
		Status:  StatusPass,
		Message: "Login requires a verified email address.",
	}
}
