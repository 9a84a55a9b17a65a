package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/couponloop/exchange-backend/internal/clients/redis"
	"github.com/couponloop/exchange-backend/internal/db"
	"github.com/couponloop/exchange-backend/internal/handlers"
	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/middleware"
	"github.com/couponloop/exchange-backend/internal/observability"
	"github.com/couponloop/exchange-backend/internal/repos"
	"github.com/couponloop/exchange-backend/internal/server"
	"github.com/couponloop/exchange-backend/internal/services"
	"github.com/couponloop/exchange-backend/internal/sse"
	"github.com/couponloop/exchange-backend/internal/utils"
)

const serviceName = "exchange-backend"

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	tokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	offerTTLMinutes := utils.GetEnvAsInt("OFFER_TTL_MINUTES", 0, log)

	// Tracing
	ctx := context.Background()
	if shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	}); shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	assetBatchRepo := repos.NewAssetBatchRepo(thePG, log)
	assetInstanceRepo := repos.NewAssetInstanceRepo(thePG, log)
	listingRepo := repos.NewListingRepo(thePG, log)
	exchangeOfferRepo := repos.NewExchangeOfferRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)
	var sseBus redis.SSEBus
	if os.Getenv("REDIS_ADDR") != "" {
		sseBus, err = redis.NewSSEBus(log)
		if err != nil {
			log.Warn("Could not init redis SSE bus, running single-instance", "error", err)
		} else {
			defer sseBus.Close()
			if err := sseBus.StartForwarder(ctx, func(m sse.SSEMessage) {
				sseHub.Publish(m)
			}); err != nil {
				log.Warn("Could not start redis SSE forwarder", "error", err)
			}
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	identityService := services.NewIdentityService(log, jwtSecretKey, time.Duration(tokenTTL)*time.Second)
	notifier := services.NewExchangeNotifier(log, sseHub, sseBus)
	listingService := services.NewListingService(thePG, log, assetInstanceRepo, listingRepo, notifier)
	exchangeService := services.NewExchangeService(thePG, log, assetInstanceRepo, listingRepo, exchangeOfferRepo, notifier)
	browseService := services.NewBrowseService(thePG, log, assetInstanceRepo, listingRepo, assetBatchRepo)

	// Offer expiry sweep (opt-in)
	if offerTTLMinutes > 0 {
		ttl := time.Duration(offerTTLMinutes) * time.Minute
		go func() {
			tick := time.NewTicker(time.Minute)
			defer tick.Stop()
			for range tick.C {
				n, err := exchangeService.SweepExpiredOffers(ctx, ttl)
				if err != nil {
					log.Warn("Offer expiry sweep failed", "error", err)
					continue
				}
				if n > 0 {
					log.Info("Expired stale offers", "count", n)
				}
			}
		}()
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(identityService)
	listingHandler := handlers.NewListingHandler(log, listingService)
	exchangeHandler := handlers.NewExchangeHandler(log, exchangeService)
	browseHandler := handlers.NewBrowseHandler(log, browseService)
	eventsHandler := handlers.NewEventsHandler(log, sseHub)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, identityService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:     serviceName,
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		ListingHandler:  listingHandler,
		ExchangeHandler: exchangeHandler,
		BrowseHandler:   browseHandler,
		EventsHandler:   eventsHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
