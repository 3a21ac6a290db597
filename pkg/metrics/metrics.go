package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|unverified).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// Registrations counts account registrations by result (success|failure).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_registrations_total",
			Help: "Total number of registration attempts",
		},
		[]string{"result"},
	)

	// PasswordResets counts password reset requests and confirmations by stage and result.
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_password_resets_total",
			Help: "Total number of password reset operations",
		},
		[]string{"stage", "result"},
	)

	// EmailsSent counts outbound emails by kind (verification|password_reset).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_emails_sent_total",
			Help: "Total number of emails dispatched",
		},
		[]string{"kind"},
	)

	// SocialLogins counts social (OAuth) logins by provider and result.
	SocialLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_social_logins_total",
			Help: "Total number of social login attempts",
		},
		[]string{"provider", "result"},
	)

	// ActiveSessions tracks active sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authgate_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
