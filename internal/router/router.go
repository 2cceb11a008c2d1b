package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizrun-backend/internal/config"
	"github.com/stemsi/quizrun-backend/internal/handler"
	"github.com/stemsi/quizrun-backend/internal/logger"
	"github.com/stemsi/quizrun-backend/internal/middleware"
	"github.com/stemsi/quizrun-backend/internal/response"
	"github.com/stemsi/quizrun-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth   *handler.AuthHandler
	Quiz   *handler.QuizHandler
	WS     *handler.WSHandler
	System *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(logger.Middleware(log, "/health", "/api/v1/system/metrics"))
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	requireUser := []gin.HandlerFunc{
		middleware.RequireUserJWT(authService),
		middleware.RejectRevokedTokens(authService),
	}

	// ─── 1. Auth Group (Rate Limited per IP) ───────────────────────────
	authLimiter := middleware.NewRateLimiter(30, time.Minute)
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", append(requireUser, handlers.Auth.Logout)...)
		auth.GET("/me", append(requireUser, handlers.Auth.Me)...)
	}

	// ─── 2. Quiz Group (JWT, rate limited per user) ────────────────────
	// Answer + navigation traffic is bursty; 240/min leaves room for
	// fast clickers without letting a script hammer the engine.
	quizLimiter := middleware.NewRateLimiter(240, time.Minute)
	quiz := router.Group("/api/v1/quiz")
	quiz.Use(requireUser...)
	quiz.Use(quizLimiter.Middleware())
	{
		quiz.GET("/inventory", middleware.PrivateCache(cfg.Quiz.InventoryTTL), handlers.Quiz.GetInventory)
		quiz.POST("/config/validate", handlers.Quiz.ValidateConfig)
		quiz.POST("/demo", middleware.NoStore(), handlers.Quiz.StartDemo)
		quiz.GET("/history", middleware.NoStore(), handlers.Quiz.GetHistory)

		sessions := quiz.Group("/sessions")
		sessions.Use(middleware.NoStore())
		{
			sessions.POST("", handlers.Quiz.StartSession)
			sessions.GET("/active", handlers.Quiz.GetActiveSession)
			sessions.GET("/:id", handlers.Quiz.GetSession)
			sessions.POST("/:id/answers", handlers.Quiz.Answer)
			sessions.DELETE("/:id/answers/:question_id", handlers.Quiz.ClearAnswer)
			sessions.POST("/:id/next", handlers.Quiz.Next)
			sessions.POST("/:id/previous", handlers.Quiz.Previous)
			sessions.POST("/:id/goto", handlers.Quiz.GoTo)
			sessions.POST("/:id/submit", handlers.Quiz.Submit)
			sessions.POST("/:id/abandon", handlers.Quiz.Abandon)
			sessions.GET("/:id/results", handlers.Quiz.GetResults)
			sessions.GET("/:id/review", handlers.Quiz.GetReview)
		}
	}

	// ─── 3. System Group (JWT) ─────────────────────────────────────────
	system := router.Group("/api/v1/system")
	system.Use(requireUser...)
	{
		system.GET("/metrics", handlers.System.MetricsSSE)
	}

	// ─── 4. WebSocket Group (query token auth) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService), middleware.RejectRevokedTokens(authService))
	{
		ws.GET("/quiz/sessions/:id/stream", handlers.WS.QuizStream)
	}

	return router
}
