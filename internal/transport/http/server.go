package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"peerai-backend/internal/ai"
	appsvc "peerai-backend/internal/app"
	"peerai-backend/internal/bootstrap"
	"peerai-backend/internal/model"
	"peerai-backend/internal/repository"
	"peerai-backend/internal/transport/http/handler"
	"peerai-backend/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())
	if rpm := app.Config.RateLimit.RequestsPerMinute; rpm > 0 {
		router.Use(middleware.RateLimit(rpm, time.Minute))
	}

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	teamRepo := repository.NewTeamRepository(app.MySQL)
	appRepo := repository.NewAppRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewDocumentChunkRepository(app.MySQL)
	appDocRepo := repository.NewAppDocumentRepository(app.MySQL)
	usageRepo := repository.NewUsageRepository(app.MySQL)

	cfg := app.Config
	chatConfig := ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}
	embConfig := ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}

	authService := appsvc.NewAuthService(
		userRepo,
		teamRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	appService := appsvc.NewAppService(appRepo, appDocRepo, app.ChunkCache, cfg.LLM.Model)
	docService := appsvc.NewDocumentService(
		appsvc.DocumentServiceConfig{
			MaxFileBytes:    cfg.Upload.MaxFileBytes,
			AllowedExts:     cfg.Upload.AllowedExts,
			MaxSessionFiles: cfg.Upload.MaxSessionFiles,
		},
		docRepo,
		appRepo,
		appDocRepo,
		app.Sessions,
		app.ObjectStore,
		app.Publisher,
		app.ChunkCache,
		app.Log,
	)
	chatService := appsvc.NewChatService(
		appRepo,
		docRepo,
		chunkRepo,
		usageRepo,
		app.AIClient,
		chatConfig,
		embConfig,
		app.ChunkCache,
		app.Log,
	)
	usageService := appsvc.NewUsageService(usageRepo)

	authHandler := handler.NewAuthHandler(authService)
	appHandler := handler.NewAppHandler(appService)
	docHandler := handler.NewDocumentHandler(docService)
	chatHandler := handler.NewChatHandler(chatService)
	usageHandler := handler.NewUsageHandler(usageService)

	authJWT := middleware.AuthJWT(cfg.Auth.JWTSecret)
	canEdit := middleware.RequireRole(model.RoleAdmin, model.RoleEditor)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)

	appGroup := v1.Group("/apps")
	appGroup.Use(authJWT)
	appGroup.POST("", canEdit, appHandler.Create)
	appGroup.GET("", appHandler.List)
	appGroup.GET("/:id", appHandler.Get)
	appGroup.DELETE("/:id", adminOnly, appHandler.Delete)

	appGroup.GET("/:id/documents", docHandler.ListByApp)
	appGroup.POST("/:id/documents", canEdit, docHandler.UploadToApp)
	appGroup.POST("/:id/documents/process", canEdit, docHandler.ProcessSession)
	appGroup.PATCH("/:id/documents/:docID", canEdit, docHandler.SetActive)
	appGroup.DELETE("/:id/documents/:docID", canEdit, docHandler.Detach)

	appGroup.POST("/:id/chat", chatHandler.Ask)

	uploadGroup := v1.Group("/uploads/sessions")
	uploadGroup.Use(authJWT, canEdit)
	uploadGroup.POST("", docHandler.IssueSession)
	uploadGroup.POST("/:token/documents", docHandler.UploadToSession)
	uploadGroup.GET("/:token/documents", docHandler.ListBySession)

	docGroup := v1.Group("/documents")
	docGroup.Use(authJWT)
	docGroup.DELETE("/:id", canEdit, docHandler.HardDelete)

	usageGroup := v1.Group("/usage")
	usageGroup.Use(authJWT, adminOnly)
	usageGroup.GET("", usageHandler.Summary)

	return router
}
