package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/campushub/assess-backend/internal/config"
	"github.com/campushub/assess-backend/internal/handler"
	"github.com/campushub/assess-backend/internal/middleware"
	"github.com/campushub/assess-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/session", handlers.Auth.GuestSession)
	}

	// ─── 2. API Group (Identity Resolved) ──────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.ResolveIdentity(cfg))
	{
		api.GET("/exams", handlers.Exam.ListExams)
		api.GET("/exams/:exam_id", handlers.Exam.GetExam)
		api.POST("/exams/:exam_id/session", handlers.Session.StartSession)
		api.POST("/exams/:exam_id/retake", handlers.Session.Retake)

		api.GET("/session", handlers.Session.GetSession)
		api.PUT("/session/answer", handlers.Session.RecordAnswer)
		api.POST("/session/submit", handlers.Session.Submit)
		api.POST("/session/abandon", handlers.Session.Abandon)

		api.GET("/attempts", handlers.Exam.ListAttempts)
		api.GET("/attempts/:exam_id", handlers.Exam.GetAttempt)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/events", handlers.WS.EventStream)
	}

	return router
}
