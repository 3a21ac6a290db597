package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/app"
	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/auth/providers"
	"github.com/charlesng35/authgate/internal/auth/social"
	"github.com/charlesng35/authgate/internal/middleware"
	"github.com/charlesng35/authgate/internal/monitoring"
	"github.com/charlesng35/authgate/internal/services"
)

// Dependencies bundles the wired services the router mounts handlers on.
type Dependencies struct {
	DB           *gorm.DB
	Config       *app.Config
	JWT          *iauth.JWTService
	Sessions     *iauth.SessionService
	Local        *providers.LocalProvider
	Registration *services.RegistrationService
	Verification *services.EmailVerificationService
	Reset        *services.PasswordResetService
	SocialLogin  *services.SocialLoginService
	Google       *social.GoogleAdapter
	Health       *monitoring.Health
}

func (d Dependencies) validate() error {
	if d.DB == nil {
		return fmt.Errorf("database handle must be provided")
	}
	if d.Config == nil {
		return fmt.Errorf("config must be provided")
	}
	if d.JWT == nil {
		return fmt.Errorf("jwt service must be provided")
	}
	if d.Sessions == nil {
		return fmt.Errorf("session service must be provided")
	}
	if d.Local == nil {
		return fmt.Errorf("local provider must be provided")
	}
	if d.Registration == nil {
		return fmt.Errorf("registration service must be provided")
	}
	if d.Verification == nil {
		return fmt.Errorf("verification service must be provided")
	}
	if d.Reset == nil {
		return fmt.Errorf("password reset service must be provided")
	}
	if d.SocialLogin == nil {
		return fmt.Errorf("social login service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	cfg := deps.Config

	if cfg.Monitoring.Health.Enabled {
		health := deps.Health
		if health == nil {
			health = monitoring.NewHealth(monitoring.DatabaseCheck(deps.DB))
		}
		r.GET("/healthz", func(c *gin.Context) {
			report := health.Evaluate(c.Request.Context())
			status := http.StatusOK
			if !report.Success {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, report)
		})
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	registerAuthRoutes(r, deps)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
