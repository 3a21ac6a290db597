package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authgate/internal/handlers"
	"github.com/charlesng35/authgate/internal/middleware"
)

// registerAuthRoutes mounts the authentication endpoints. Paths keep their
// literal trailing slashes because that is the contract clients depend on.
func registerAuthRoutes(r *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(
		deps.DB,
		deps.Local,
		deps.JWT,
		deps.Sessions,
		deps.Config.Auth.Local.RequireVerifiedEmail,
	)
	passwordHandler := handlers.NewPasswordHandler(deps.DB, deps.Local, deps.Reset)
	registrationHandler := handlers.NewRegistrationHandler(deps.Registration, deps.Verification)
	socialHandler := handlers.NewSocialHandler(deps.Google, deps.SocialLogin, deps.Sessions)

	requireAuth := middleware.Auth(deps.JWT, deps.Sessions)

	auth := r.Group("/auth")
	{
		auth.POST("/login/", authHandler.Login)
		auth.POST("/logout/", authHandler.Logout)
		auth.GET("/user/", requireAuth, authHandler.UserDetail)
		auth.PUT("/user/", requireAuth, authHandler.UpdateUserDetail)

		auth.POST("/password/change/", requireAuth, passwordHandler.Change)
		auth.POST("/password/reset/", passwordHandler.ResetRequest)
		auth.POST("/password/reset/confirm/", passwordHandler.ResetConfirm)

		auth.POST("/registration/", registrationHandler.Register)
		auth.POST("/registration/account-confirm-email/:key/", registrationHandler.ConfirmEmail)

		auth.POST("/google/", socialHandler.GoogleLogin)
	}

	r.GET("/hello/", requireAuth, authHandler.Hello)
}
