package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/handler"
	"github.com/lpkmns/nihongo-exam/internal/middleware"
	"github.com/lpkmns/nihongo-exam/internal/response"
	"github.com/lpkmns/nihongo-exam/internal/service"
)

const (
	exportPath        = "/api/v1/admin/results/export"
	categoriesMaxAge  = 3600
	adminLoginPerMin  = 10
	rateLimitInterval = time.Minute
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	Token         *handler.TokenHandler
	Question      *handler.QuestionHandler
	Result        *handler.ResultHandler
	WS            *handler.WSHandler
	Dashboard     *handler.DashboardHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the background sweepers of the rate limiters.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	active middleware.ActiveChecker,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", handler.HeaderDeviceID}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// Exports are already compressed (xlsx) or streamed as downloads.
	brotliConfig := middleware.DefaultBrotliConfig
	brotliConfig.Skipper = middleware.SkipPaths(exportPath)
	router.Use(middleware.BrotliWithConfig(brotliConfig))

	router.GET("/health", handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(middleware.CacheControl(categoriesMaxAge))
	{
		publicAPI.GET("/categories", handler.ListCategories)
	}

	tokenLimiter := middleware.NewRateLimiter(ctx, cfg.TokenRatePerMin, rateLimitInterval)
	loginLimiter := middleware.NewRateLimiter(ctx, adminLoginPerMin, rateLimitInterval)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/admin/login", loginLimiter.Middleware(), handlers.Auth.AdminLogin)

		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
		auth.POST("/admin/password", middleware.RequireAdminJWT(authService), handlers.Auth.ChangePassword)
	}

	// ─── 2. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.NoStore())
	{
		// Entry points, rate limited per IP.
		studentAPI.POST("/token/validate", tokenLimiter.Middleware(), handlers.StudentPortal.ValidateToken)
		studentAPI.POST("/exams/start", tokenLimiter.Middleware(), handlers.StudentPortal.StartExam)
		studentAPI.GET("/resume", tokenLimiter.Middleware(), handlers.StudentPortal.Resume)

		studentAPI.GET("/session",
			middleware.RequireStudentJWT(authService),
			middleware.CheckActiveStudent(active),
			handlers.StudentPortal.GetSession,
		)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 4. Admin Group (JWT + single session) ─────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)
		adminAPI.GET("/categories", handler.ListCategories)

		// Tokens
		adminAPI.GET("/tokens", handlers.Token.ListTokens)
		adminAPI.POST("/tokens", handlers.Token.GenerateTokens)
		adminAPI.GET("/tokens/stats", handlers.Token.GetStats)
		adminAPI.POST("/tokens/:code/disable", handlers.Token.DisableToken)
		adminAPI.DELETE("/tokens/:code", handlers.Token.DeleteToken)

		// Questions
		adminAPI.GET("/questions", handlers.Question.ListQuestions)
		adminAPI.POST("/questions", handlers.Question.CreateQuestion)
		adminAPI.GET("/questions/stats", handlers.Question.GetStats)
		adminAPI.PUT("/questions/:id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:id", handlers.Question.DeleteQuestion)

		// Students
		adminAPI.GET("/students", handlers.StudentMgmt.ListStudents)
		adminAPI.GET("/students/:id", handlers.StudentMgmt.GetStudent)
		adminAPI.DELETE("/students/:id", handlers.StudentMgmt.DeleteStudent)
		adminAPI.POST("/students/:id/disconnect", handlers.StudentMgmt.DisconnectStudent)
		adminAPI.PATCH("/students/:id/status", handlers.StudentMgmt.UpdateStatus)

		// Results
		adminAPI.GET("/results", handlers.Result.ListResults)
		adminAPI.DELETE("/results/:id", handlers.Result.DeleteResult)
		adminAPI.GET("/results/export", middleware.NoStore(), handlers.Result.ExportResults)

		// Live monitoring
		adminAPI.GET("/monitor", handlers.Monitor.MonitorSSE)
		adminAPI.GET("/monitor/snapshot", handlers.Monitor.GetSnapshot)
		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
