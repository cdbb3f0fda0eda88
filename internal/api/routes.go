package api

import (
	"log/slog"

	clamd "github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvhub/internal/api/middleware"
	"cvhub/internal/auth"
	"cvhub/internal/config"
	"cvhub/internal/database"
	"cvhub/internal/storage"
	"cvhub/internal/translate"
	"cvhub/internal/visibility"
)

// RegisterRoutes 注册 API 路由。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	googleService *auth.GoogleService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	storageClient *storage.Client,
) {
	store := database.NewCVStore(db)
	gate := visibility.NewGate(store)
	translator := translate.NewClient(cfg.Translate)

	var scanner *clamd.Clamd
	if cfg.API.ClamdAddr != "" {
		scanner = clamd.NewClamd(cfg.API.ClamdAddr)
	}

	authHandler := NewAuthHandler(db, authService, googleService, redisClient, logger, cfg.Auth.CookieDomain, cfg.OAuth.UIRedirectURL)
	cvHandler := NewCVHandler(store, storageClient, asynqClient, logger)
	publicHandler := NewPublicHandler(gate, translator, storageClient, redisClient, cfg.API.PublicRatePerHour, cfg.API.TranslateRatePerIP, logger)
	photoHandler := NewPhotoHandler(store, storageClient, scanner, cfg.API.PhotoMaxBytes, logger)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.WSAllowedOrigins)

	authMiddleware := middleware.AuthMiddleware(authService)
	optionalAuth := middleware.OptionalAuthMiddleware(authService)

	// 公开页走根路径，便于直接分享链接。
	router.GET("/cv/:slug", optionalAuth, publicHandler.GetCV)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)
		v1.GET("/public/cv/:slug", optionalAuth, publicHandler.GetCV)

		authGroup := v1.Group("/auth")
		{
			authGroup.GET("/google/start", authHandler.GoogleStart)
			authGroup.GET("/google/callback", authHandler.GoogleCallback)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.GET("/me", authMiddleware, authHandler.Me)
		}

		cvGroup := v1.Group("/cv")
		cvGroup.Use(authMiddleware)
		{
			cvGroup.GET("", cvHandler.GetMyCV)
			cvGroup.POST("", cvHandler.SaveCV)
			cvGroup.PUT("", cvHandler.SaveCV)
			cvGroup.DELETE("", cvHandler.DeleteCV)
			cvGroup.POST("/photo", photoHandler.Upload)
			cvGroup.POST("/export", cvHandler.ExportCV)
			cvGroup.GET("/export/link", cvHandler.GetExportLink)
		}
	}
}
