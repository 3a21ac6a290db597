package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/api"
	"github.com/charlesng35/authgate/internal/app"
	"github.com/charlesng35/authgate/internal/app/maintenance"
	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/auth/providers"
	"github.com/charlesng35/authgate/internal/auth/social"
	"github.com/charlesng35/authgate/internal/database"
	"github.com/charlesng35/authgate/internal/monitoring"
	"github.com/charlesng35/authgate/internal/security"
	"github.com/charlesng35/authgate/internal/services"
	"github.com/charlesng35/authgate/pkg/logger"
	"github.com/charlesng35/authgate/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("authgate-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionSvc, err := iauth.NewSessionService(db, jwtService, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	audit := security.NewAuditService(jwtService, cfg)
	for _, check := range audit.Run().Checks {
		switch check.Status {
		case security.StatusFail:
			log.Error("security audit check failed",
				zap.String("check", check.ID),
				zap.String("message", check.Message),
				zap.String("remediation", check.Remediation))
		case security.StatusWarn:
			log.Warn("security audit check warning",
				zap.String("check", check.ID),
				zap.String("message", check.Message))
		}
	}

	localProvider, err := providers.NewLocalProvider(db, cfg.Auth.LocalProviderConfig())
	if err != nil {
		return fmt.Errorf("initialise local provider: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}

	verificationSvc, err := services.NewEmailVerificationService(db, mailer,
		services.WithVerificationBaseURL(cfg.Server.ExternalURL),
		services.WithVerificationExpiry(cfg.Auth.Tokens.VerificationTTL),
	)
	if err != nil {
		return fmt.Errorf("initialise verification service: %w", err)
	}

	registrationSvc, err := services.NewRegistrationService(db, verificationSvc)
	if err != nil {
		return fmt.Errorf("initialise registration service: %w", err)
	}

	resetSvc, err := services.NewPasswordResetService(db, mailer, sessionSvc,
		services.WithResetBaseURL(cfg.Server.ExternalURL),
		services.WithResetExpiry(cfg.Auth.Tokens.ResetTTL),
	)
	if err != nil {
		return fmt.Errorf("initialise password reset service: %w", err)
	}

	socialSvc, err := services.NewSocialLoginService(db, nil)
	if err != nil {
		return fmt.Errorf("initialise social login service: %w", err)
	}

	var googleAdapter *social.GoogleAdapter
	if cfg.Social.Google.Enabled {
		googleAdapter, err = social.NewGoogleAdapter(cfg.Social.GoogleAdapterConfig(), social.GoogleOptions{})
		if err != nil {
			return fmt.Errorf("initialise google adapter: %w", err)
		}
		log.Info("google login enabled", zap.String("callback_url", cfg.Social.Google.CallbackURL))
	}

	cleaner := maintenance.NewCleaner(db, sessionSvc)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Dependencies{
		DB:           db,
		Config:       cfg,
		JWT:          jwtService,
		Sessions:     sessionSvc,
		Local:        localProvider,
		Registration: registrationSvc,
		Verification: verificationSvc,
		Reset:        resetSvc,
		SocialLogin:  socialSvc,
		Google:       googleAdapter,
		Health:       monitoring.NewHealth(monitoring.DatabaseCheck(db)),
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
