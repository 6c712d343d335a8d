package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/handler"
	"github.com/stemsi/exstem-grading/internal/middleware"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Submission     *handler.SubmissionHandler
	PaperStats     *handler.PaperStatsHandler
	StudentInsight *handler.StudentInsightHandler
	Scheduler      *handler.SchedulerHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
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

	// ─── 1. Submission Group (Public) ──────────────────────────────────
	api := router.Group("/api/v1")
	{
		api.POST("/submissions", handlers.Submission.Submit)
		api.GET("/submissions/jobs/:job_id", handlers.Submission.JobStatus)

		api.GET("/paper-stats/:paper_id", handlers.PaperStats.GetStats)
		api.GET("/paper-stats/:paper_id/overview", handlers.PaperStats.GetOverview)

		api.GET("/students/:student_id/paper-scores", handlers.StudentInsight.PaperScores)
		api.GET("/students/:student_id/incorrect-summary", handlers.StudentInsight.IncorrectSummary)
	}

	// ─── 2. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.POST("/paper-stats/:paper_id/rebuild", handlers.PaperStats.Rebuild)

		adminAPI.GET("/scheduler", handlers.Scheduler.Status)
		adminAPI.POST("/scheduler/trigger/:paper_id", handlers.Scheduler.Trigger)
		adminAPI.DELETE("/scheduler/jobs/:schedule_key", handlers.Scheduler.Cancel)
		adminAPI.POST("/scheduler/restart", handlers.Scheduler.Restart)
	}

	return router
}
