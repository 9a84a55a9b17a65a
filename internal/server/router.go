package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/couponloop/exchange-backend/internal/handlers"
	"github.com/couponloop/exchange-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName     string
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	ListingHandler  *handlers.ListingHandler
	ExchangeHandler *handlers.ExchangeHandler
	BrowseHandler   *handlers.BrowseHandler
	EventsHandler   *handlers.EventsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/api/auth/token", cfg.AuthHandler.MintToken)

	// Protected
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Listings
	protected.POST("/exchange/listings", cfg.ListingHandler.CreateListing)
	protected.DELETE("/exchange/listings/:instanceId", cfg.ListingHandler.CancelListing)
	protected.GET("/exchange/listings/mine", cfg.BrowseHandler.ListMyListings)
	// Swaps
	protected.POST("/exchange/offers", cfg.ExchangeHandler.ProposeSwap)
	protected.POST("/exchange/offers/:offerId/resolve", cfg.ExchangeHandler.ResolveSwap)
	// Browse
	protected.GET("/exchange/listings", cfg.BrowseHandler.BrowseOpenListings)
	protected.GET("/exchange/holdings", cfg.BrowseHandler.ListMyHoldings)
	// Events
	protected.GET("/exchange/events", cfg.EventsHandler.Stream)

	return router
}
