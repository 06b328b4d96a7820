// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cardvault/cardmarket-backend/internal/config"
	"github.com/cardvault/cardmarket-backend/internal/handlers"
	"github.com/cardvault/cardmarket-backend/internal/middleware"
	"github.com/cardvault/cardmarket-backend/internal/realtime"
	"github.com/cardvault/cardmarket-backend/internal/services"
	"github.com/cardvault/cardmarket-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, hub *realtime.Hub) (*gin.Engine, *services.AuctionService) {
	// Initialize services
	notificationService := services.NewNotificationService(db, hub)
	settlementService := services.NewSettlementService(db)
	auctionService := services.NewAuctionService(db, settlementService, notificationService, cfg)
	bidService := services.NewBidService(db)
	userService := services.NewUserService(db)

	// Initialize handlers
	auctionHandler := handlers.NewAuctionHandler(auctionService, bidService)
	bidHandler := handlers.NewBidHandler(bidService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub)
	userHandler := handlers.NewUserHandler(userService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Realtime notification socket
	r.GET("/ws", middleware.AuthRequired(), notificationHandler.ServeWS)

	// API v1 routes
	v1 := r.Group("/v1")
	{
		auctions := v1.Group("/auctions")
		{
			auctions.GET("", middleware.OptionalAuth(), auctionHandler.GetActiveAuctions)
			auctions.GET("/:id", auctionHandler.GetAuction)
			auctions.GET("/:id/bids", auctionHandler.GetAuctionBids)

			protected := auctions.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", auctionHandler.ListForAuction)
				protected.DELETE("/:id", auctionHandler.CancelAuction)
				protected.POST("/:id/bids", middleware.BidRateLimit(), bidHandler.PlaceBid)
			}
		}

		bids := v1.Group("/bids")
		bids.Use(middleware.AuthRequired())
		{
			bids.GET("", bidHandler.GetActiveBids)
			bids.GET("/:id", bidHandler.GetBid)
			bids.DELETE("/:id", bidHandler.WithdrawBid)
		}

		users := v1.Group("/users")
		users.Use(middleware.AuthRequired())
		{
			users.GET("/me", userHandler.GetProfile)
			users.GET("/me/cards", userHandler.GetOwnedCards)
		}

		notifications := v1.Group("/notifications")
		notifications.Use(middleware.AuthRequired())
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/auctions/sweep", auctionHandler.SweepExpiredAuctions)
		}
	}

	return r, auctionService
}
