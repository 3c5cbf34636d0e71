package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/task-notifier/internal/transport/http/handler"
	"github.com/ErlanBelekov/task-notifier/internal/transport/http/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, taskHandler *handler.TaskHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
	}))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	authMW := middleware.Auth(jwtKey)

	// Public auth routes
	auth := r.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/magic-link", authHandler.RequestLoginLink)
	auth.GET("/verify", authHandler.RedeemLoginLink)
	auth.POST("/password-reset", authHandler.RequestPasswordReset)
	auth.POST("/password-reset/confirm", authHandler.ResetPassword)
	auth.GET("/verify-email", authHandler.VerifyEmail)
	auth.POST("/email-verification", authMW, authHandler.RequestEmailVerification)

	r.POST("/notify-me", authMW, taskHandler.NotifyMe)

	// Protected task routes
	tasks := r.Group("/tasks", authMW)
	tasks.GET("", taskHandler.List)
	tasks.POST("", taskHandler.Create)
	tasks.DELETE("", taskHandler.DeleteAll)
	tasks.PUT("/:id", taskHandler.Update)
	tasks.POST("/:id/toggle", taskHandler.Toggle)
	tasks.DELETE("/:id", taskHandler.Delete)

	return r
}
