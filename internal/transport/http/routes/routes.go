package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/startupadvisor/advisor-api/internal/infra/config"
	"github.com/startupadvisor/advisor-api/internal/infra/security"
	"github.com/startupadvisor/advisor-api/internal/transport/http/handlers"
	"github.com/startupadvisor/advisor-api/internal/transport/http/middleware"
	"github.com/startupadvisor/advisor-api/internal/transport/ws"
	"github.com/startupadvisor/advisor-api/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.AuthService
	Passwords *usecase.PasswordService
	Accounts  *usecase.AccountService
	Projects  *usecase.ProjectService
	Chats     *usecase.ChatService
}

// Dependencies bundles everything Register needs to wire the engine.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Tokens      *security.TokenService
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	WebSocket   *ws.Handler
	Metrics     *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}
	if len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	}

	authMW := middleware.RequireAuth(deps.Tokens)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accessTTL := deps.Config.Auth.AccessTokenTTL

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, accessTTL)
		authHandler.RegisterRoutes(authGroup, authMW,
			buildLimit(deps, "login", deps.Config.RateLimit.LoginMaxAttempts),
			buildLimit(deps, "register", deps.Config.RateLimit.RegisterMaxAttempts))

		passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords)
		passwordGroup := api.Group("/password")
		resetLimit := buildLimit(deps, "password_reset", deps.Config.RateLimit.PasswordResetMaxAttempts)
		passwordGroup.POST("/forgot", append(append([]gin.HandlerFunc{}, resetLimit...), passwordHandler.ForgotPassword)...)
		passwordGroup.POST("/reset", append(append([]gin.HandlerFunc{}, resetLimit...), passwordHandler.ResetPassword)...)
		passwordGroup.POST("/change", authMW, passwordHandler.ChangePassword)

		accountHandler := handlers.NewAccountHandler(deps.Services.Accounts, accessTTL)
		accountGroup := api.Group("/account")
		accountGroup.POST("/deactivate", authMW, accountHandler.Deactivate)
		accountGroup.POST("/reactivate", accountHandler.Reactivate)
		accountGroup.POST("/email", authMW, accountHandler.ChangeEmail)
		accountGroup.POST("/unlock", append(append([]gin.HandlerFunc{}, resetLimit...), accountHandler.Unlock)...)

		projectGroup := api.Group("/projects")
		projectGroup.Use(authMW)
		handlers.NewProjectHandler(deps.Services.Projects).RegisterRoutes(projectGroup)

		chatGroup := api.Group("/conversations")
		chatGroup.Use(authMW)
		handlers.NewChatHandler(deps.Services.Chats).RegisterRoutes(chatGroup)
	}

	if deps.WebSocket != nil {
		r.GET("/ws", deps.WebSocket.Serve)
	}

	return r
}

// buildLimit returns the sliding-window middleware for a named rule, or an
// empty chain when rate limiting is not configured.
func buildLimit(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.Limit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
