package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Assessment   *handler.AssessmentHandler
	AdminSession *handler.AdminSessionHandler
	System       *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── 1. Participant Group (JWT + role) ─────────────────────────────
	syncLimiter := middleware.NewRateLimiter(cfg.SyncRateLimit, time.Minute)

	assessments := router.Group("/api/v1/assessments/:session_id")
	assessments.Use(
		middleware.RequireParticipantJWT(auth),
		middleware.RequireAssignedRole(),
		middleware.NoStore(),
	)
	{
		assessments.POST("/start", handlers.Assessment.Start)
		assessments.GET("/progress", handlers.Assessment.GetProgress)
		assessments.POST("/answers", handlers.Assessment.SubmitAnswer)
		assessments.POST("/sync", syncLimiter.Middleware(), handlers.Assessment.Sync)
		assessments.POST("/complete", handlers.Assessment.Complete)
		assessments.POST("/retake", handlers.Assessment.Retake)
	}

	// ─── 2. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		adminAPI.GET("/sessions",
			middleware.RequirePermission(string(model.PermissionSessionsRead)),
			handlers.AdminSession.ListSessions,
		)
		adminAPI.POST("/sessions",
			middleware.RequirePermission(string(model.PermissionSessionsWrite)),
			handlers.AdminSession.CreateSession,
		)
		adminAPI.POST("/sessions/:session_id/generate",
			middleware.RequirePermission(string(model.PermissionSessionsWrite)),
			handlers.AdminSession.GenerateQuestionSets,
		)

		adminAPI.GET("/system/stats",
			middleware.RequireAnyPermission(string(model.PermissionSystemRead), string(model.PermissionSessionsWrite)),
			handlers.System.Stats,
		)
	}

	return router
}
