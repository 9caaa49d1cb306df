// internal/router/router.go
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/limey-tt/limey-backend/internal/config"
	"github.com/limey-tt/limey-backend/internal/events"
	"github.com/limey-tt/limey-backend/internal/gateway/ttpaypal"
	"github.com/limey-tt/limey-backend/internal/handlers"
	"github.com/limey-tt/limey-backend/internal/middleware"
	"github.com/limey-tt/limey-backend/internal/repositories"
	"github.com/limey-tt/limey-backend/internal/services"
	"github.com/limey-tt/limey-backend/internal/session"
)

// Dependencies are the external connections main opens before routing.
type Dependencies struct {
	Redis  redis.Cmdable
	Events events.Publisher
	// Auth may be nil when the auth provider is not configured.
	Auth services.AuthProvider
}

func Initialize(db *gorm.DB, cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	adminAccountID := uuid.Nil
	if cfg.Ads.AdminUserID != "" {
		if adminAccountID, err = uuid.Parse(cfg.Ads.AdminUserID); err != nil {
			return nil, fmt.Errorf("invalid ADS_ADMIN_USER_ID: %w", err)
		}
	}

	// Repositories
	ledgerRepo := repositories.NewLedgerRepository(db)
	adRepo := repositories.NewAdRepository(db)
	walletLinkRepo := repositories.NewWalletLinkRepository(db)

	// Initialize services
	tokenStore := session.NewStore(deps.Redis, time.Duration(cfg.Gateway.TokenTTLHours)*time.Hour)
	ledgerService := services.NewLedgerService(ledgerRepo, deps.Events)
	profileService := services.NewProfileService(db, storageService, deps.Events)
	authService := services.NewAuthService(deps.Auth, profileService)
	videoService := services.NewVideoService(db, storageService)
	messageService := services.NewMessageService(db, deps.Events)
	walletService := services.NewWalletService(walletLinkRepo, ledgerService, ttpaypal.NewClient(cfg.Gateway), tokenStore)
	adService := services.NewAdService(adRepo, ledgerService, deps.Events, adminAccountID)
	creditService := services.NewCreditService(cfg.Payment, ledgerService)
	adminService := services.NewAdminService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	profileHandler := handlers.NewProfileHandler(profileService)
	videoHandler := handlers.NewVideoHandler(videoService)
	messageHandler := handlers.NewMessageHandler(messageService)
	walletHandler := handlers.NewWalletHandler(walletService, ledgerService)
	creditsHandler := handlers.NewCreditsHandler(creditService)
	adHandler := handlers.NewAdHandler(adService, storageService, profileService)
	adminHandler := handlers.NewAdminHandler(adminService, adService)
	shareHandler := handlers.NewShareHandler(videoService, cfg.Frontend, cfg.Server.PublicURL)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"version": "1.0.0",
		})
	})

	if dir := storageService.LocalDir(); dir != "" {
		r.Static("/uploads", dir)
	}

	// Share pages for link previews
	r.GET("/video/:id", shareHandler.VideoPage)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/signup", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
		}

		// Current user
		me := v1.Group("/me")
		me.Use(middleware.AuthRequired())
		{
			me.GET("", profileHandler.GetMe)
			me.PUT("", profileHandler.UpdateProfile)
			me.POST("/avatar", middleware.UploadRateLimit(), profileHandler.UploadAvatar)
			me.GET("/settings", profileHandler.GetSettings)
			me.PUT("/settings", profileHandler.UpdateSettings)
		}

		// Profile routes
		profiles := v1.Group("/profiles")
		{
			profiles.GET("/by-username/:username", middleware.OptionalAuth(), profileHandler.GetByUsername)
			profiles.GET("/:id", middleware.OptionalAuth(), profileHandler.GetProfile)
			profiles.GET("/:id/followers", profileHandler.Followers)
			profiles.GET("/:id/following", profileHandler.Following)
			profiles.GET("/:id/videos", videoHandler.ListByUser)

			protected := profiles.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/:id/follow", profileHandler.Follow)
				protected.DELETE("/:id/follow", profileHandler.Unfollow)
			}
		}

		// Video routes
		videos := v1.Group("/videos")
		{
			videos.GET("", videoHandler.Feed)
			videos.GET("/:id", middleware.OptionalAuth(), videoHandler.GetVideo)
			videos.POST("/:id/view", videoHandler.RecordView)

			protected := videos.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", middleware.UploadRateLimit(), videoHandler.Upload)
				protected.DELETE("/:id", videoHandler.DeleteVideo)
				protected.POST("/:id/like", videoHandler.Like)
				protected.DELETE("/:id/like", videoHandler.Unlike)
			}
		}

		// Messaging routes
		messages := v1.Group("/messages")
		messages.Use(middleware.AuthRequired())
		{
			messages.POST("", messageHandler.Send)
			messages.GET("/unread-count", messageHandler.UnreadCount)
			messages.GET("/with/:id", messageHandler.Conversation)
			messages.DELETE("/:id", messageHandler.DeleteMessage)
		}

		chats := v1.Group("/chats")
		chats.Use(middleware.AuthRequired())
		{
			chats.GET("", messageHandler.ListChats)
			chats.POST("/:id/read", messageHandler.MarkRead)
		}

		// TriniCredits
		credits := v1.Group("/credits")
		credits.Use(middleware.AuthRequired())
		{
			credits.GET("/balance", walletHandler.Balance)
			credits.GET("/transactions", walletHandler.History)
			credits.POST("/purchase", middleware.WalletRateLimit(), creditsHandler.CreateIntent)
			credits.POST("/confirm", middleware.WalletRateLimit(), creditsHandler.Confirm)
		}

		// TTPayPal wallet
		wallet := v1.Group("/wallet")
		wallet.Use(middleware.AuthRequired(), middleware.WalletRateLimit())
		{
			wallet.GET("/status", walletHandler.Status)
			wallet.GET("/limits", walletHandler.Limits)
			wallet.POST("/link", walletHandler.Link)
			wallet.DELETE("/link", walletHandler.Unlink)
			wallet.POST("/deposit", walletHandler.Deposit)
			wallet.POST("/withdraw", walletHandler.Withdraw)
		}

		// Sponsored ads
		ads := v1.Group("/ads")
		{
			ads.GET("", adHandler.ListActive)
			ads.GET("/pricing", adHandler.Pricing)
			ads.POST("/:id/impression", adHandler.Impression)
			ads.POST("/:id/click", adHandler.Click)

			protected := ads.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", adHandler.CreateAd)
				protected.POST("/media", middleware.UploadRateLimit(), adHandler.UploadMedia)
				protected.GET("/mine", adHandler.ListMine)
				protected.GET("/:id", adHandler.GetAd)
			}
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(profileService))
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)
			admin.GET("/ads/pending", adminHandler.GetPendingAds)
			admin.POST("/ads/:id/approve", adminHandler.ApproveAd)
			admin.POST("/ads/:id/reject", adminHandler.RejectAd)
			admin.GET("/transactions", adminHandler.GetTransactions)
			admin.GET("/audit-logs", adminHandler.GetAuditLogs)
		}
	}

	logrus.WithField("routes", len(r.Routes())).Debug("Router initialized")
	return r, nil
}
