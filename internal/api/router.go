package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/harryheman/slack-clone/internal/auth"
	"github.com/harryheman/slack-clone/internal/gateway"
	"github.com/harryheman/slack-clone/internal/redis"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBody = "12M"

// Dependencies holds all handler instances and middleware for route wiring.
type Dependencies struct {
	Messages      *MessageHandler
	Reactions     *ReactionHandler
	Conversations *ConversationHandler
	Uploads       *UploadHandler // nil when storage is not configured
	Gateway       *gateway.Manager

	TokenService       *auth.TokenService
	Redis              *redis.Client // nil disables rate limiting
	RateLimitPerMinute int

	// Ready reports whether backing stores are reachable.
	Ready func(ctx context.Context) error
}

// NewServer creates the Echo instance with the shared middleware stack.
func NewServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.BodyLimit(maxRequestBody))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Log(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))

	return e
}

// SetupRouter registers all API routes on the Echo instance.
func SetupRouter(e *echo.Echo, deps *Dependencies) {
	e.GET("/health", func(c echo.Context) error {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				slog.Warn("health check failed", "error", err)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// WebSocket gateway; authenticates with IDENTIFY.
	e.GET("/gateway", deps.Gateway.HandleWebSocket)

	limit := deps.RateLimitPerMinute
	if limit <= 0 {
		limit = 120
	}
	v1 := e.Group("/api/v1",
		deps.TokenService.Middleware(),
		RateLimitMiddleware(deps.Redis, "api", limit, time.Minute),
	)

	// Messages
	v1.GET("/messages", deps.Messages.ListMessages)
	v1.POST("/messages", deps.Messages.SendMessage)
	v1.GET("/messages/:id", deps.Messages.GetMessage)
	v1.PATCH("/messages/:id", deps.Messages.UpdateMessage)
	v1.DELETE("/messages/:id", deps.Messages.DeleteMessage)

	// Reactions
	v1.POST("/messages/:id/reactions", deps.Reactions.ToggleReaction)

	// Conversations
	v1.POST("/workspaces/:id/conversations", deps.Conversations.CreateOrGet)

	// Uploads
	if deps.Uploads != nil {
		v1.POST("/workspaces/:id/uploads", deps.Uploads.GenerateUploadURL)
		v1.POST("/workspaces/:id/images", deps.Uploads.UploadImage)
	}
}
