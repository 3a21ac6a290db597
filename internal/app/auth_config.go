package app

import (
	"time"

	"github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/auth/providers"
	"github.com/charlesng35/authgate/internal/auth/social"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultKeyTTL
	}

	return auth.JWTConfig{
		Secret: c.JWT.Secret,
		Issuer: c.JWT.Issuer,
		KeyTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}

	return auth.SessionConfig{SessionTTL: ttl}
}

// LocalProviderConfig converts AuthConfig into LocalProvider parameters.
func (c AuthConfig) LocalProviderConfig() providers.LocalConfig {
	duration := c.Local.LockoutDuration
	if duration <= 0 {
		duration = defaultLockoutDuration
	}

	threshold := c.Local.LockoutThreshold
	if threshold <= 0 {
		threshold = defaultLockoutThreshold
	}

	return providers.LocalConfig{
		LockoutThreshold: threshold,
		LockoutDuration:  duration,
	}
}

// GoogleAdapterConfig converts SocialConfig into Google adapter parameters.
func (c SocialConfig) GoogleAdapterConfig() social.GoogleConfig {
	return social.GoogleConfig{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		CallbackURL:  c.Google.CallbackURL,
		IssuerURL:    c.Google.IssuerURL,
	}
}
