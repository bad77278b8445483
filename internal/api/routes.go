package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"careercraft/internal/api/middleware"
	"careercraft/internal/auth"
	"careercraft/internal/config"
)

const defaultLoginRateLimitPerHour = 10

// RegisterRoutes wires every v1 route onto the router.
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	cfg *config.Config,
	queue TaskEnqueuer,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient ObjectStorage,
) {
	resumeHandler := NewResumeHandler(db, storageClient, cfg.Clamd.Addr)
	analysisHandler := NewAnalysisHandler(db, queue, cfg.Features)
	authHandler := NewAuthHandler(db, authService, redisClient, logger, defaultLoginRateLimitPerHour)
	wsHandler := NewWsHandler(redisClient, authService, logger, nil)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		resumeGroup := v1.Group("/resumes")
		resumeGroup.Use(authMiddleware)
		{
			resumeGroup.GET("", resumeHandler.ListResumes)
			resumeGroup.POST("", resumeHandler.UploadResume)
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.GET("/:id/download", resumeHandler.GetDownloadLink)
			resumeGroup.GET("/:id/analyses", analysisHandler.ListByResume)
		}

		analysisGroup := v1.Group("/analyses")
		analysisGroup.Use(authMiddleware)
		{
			analysisGroup.POST("", analysisHandler.CreateAnalysis)
			analysisGroup.GET("/:id", analysisHandler.GetAnalysis)
		}
	}
}
