package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health  *handler.HealthHandler
	Student *handler.StudentQuizHandler
	Teacher *handler.TeacherQuizHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background goroutines owned by middlewares.
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		SkipPaths: []string{"/metrics"},
	}))

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute, time.Minute)

	// ─── 1. Student Group (JWT, Rate Limited) ──────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(auth),
		limiter.Middleware(),
	)
	{
		studentAPI.POST("/quizzes/:quiz_id/attempts", handlers.Student.StartAttempt)
		studentAPI.GET("/quizzes/:quiz_id/attempts", handlers.Student.ListAttempts)
		studentAPI.GET("/quizzes/:quiz_id/paper", handlers.Student.GetPaper)
		studentAPI.PUT("/attempts/:attempt_id/answers/:question_id", handlers.Student.SaveAnswer)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Student.SubmitAttempt)
		studentAPI.GET("/attempts/:attempt_id", handlers.Student.GetAttempt)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(auth))
	{
		ws.GET("/student/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	// ─── 3. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(auth))
	{
		teacherAPI.POST("/quizzes", handlers.Teacher.CreateQuiz)
		teacherAPI.GET("/quizzes/:id", handlers.Teacher.GetQuiz)
		teacherAPI.PUT("/quizzes/:id/questions", handlers.Teacher.ReplaceQuestions)
		teacherAPI.POST("/quizzes/:id/publish", handlers.Teacher.PublishQuiz)
		teacherAPI.GET("/quizzes/:id/attempts", handlers.Teacher.ListResults)
		teacherAPI.POST("/attempts/:attempt_id/regrade", handlers.Teacher.RegradeAttempt)
	}

	return router
}
