package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Users          *handlers.UsersHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Get)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/token", cfg.Auth.Token)

	users := app.Group("/users")
	users.Post("/create_superuser", cfg.Users.CreateSuperuser)
	users.Post("/create", cfg.Users.Register)

	protected := users.Group("", cfg.AuthMiddleware.Handle, auth.RequireUser())
	protected.Get("/get_me", cfg.Users.GetMe)
	protected.Get("/admin-only", auth.RequireSuperuser(), cfg.Users.AdminOnly)
	protected.Put("/change_password", cfg.Users.ChangePassword)
	protected.Put("/update_user", cfg.Users.UpdateUser)
	// registered last so the static paths above win
	protected.Get("/:user_id", cfg.Users.GetByID)
}
