package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chainswarm/chainswarm-go/internal/api"
	"github.com/chainswarm/chainswarm-go/internal/api/handlers"
	"github.com/chainswarm/chainswarm-go/internal/cache"
	"github.com/chainswarm/chainswarm-go/internal/config"
	"github.com/chainswarm/chainswarm-go/internal/database"
	"github.com/chainswarm/chainswarm-go/internal/ledger"
	"github.com/chainswarm/chainswarm-go/internal/logging"
	"github.com/chainswarm/chainswarm-go/internal/market"
	"github.com/chainswarm/chainswarm-go/internal/registry"
	"github.com/chainswarm/chainswarm-go/internal/scanner"
	"github.com/chainswarm/chainswarm-go/internal/services"
	"github.com/chainswarm/chainswarm-go/internal/swarm"
)

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	reg := registry.New(cfg.ChainInfos(), logger)
	if reg.Len() < 2 {
		logger.Warn("Fewer than two chains configured, scans will find nothing")
	}

	marketClient := market.NewClient(cfg.Market.ServiceURL, cfg.Market.CallTimeout())
	cacheTTL, err := time.ParseDuration(cfg.Market.PriceCacheTTL)
	if err != nil {
		cacheTTL = 10 * time.Second
	}
	oracle := cache.NewRedisPriceCache(marketClient, redis.Client, cacheTTL, logger)

	sc := scanner.New(oracle, marketClient, logger,
		scanner.WithCallTimeout(cfg.Market.CallTimeout()),
		scanner.WithMaxParallel(cfg.Swarm.MaxParallelScans),
	)

	coordinator := swarm.NewCoordinator(swarm.Config{
		TopK:            cfg.Swarm.TopKOpportunities,
		ViabilityFloor:  cfg.Swarm.ViabilityFloor,
		SuccessWindow:   cfg.Swarm.SuccessWindow,
		SmoothingPeriod: cfg.Swarm.SmoothingPeriod,
	}, logger)

	for i := 0; i < cfg.Swarm.AgentCount; i++ {
		agent, err := swarm.NewAgent(reg, oracle, marketClient, cfg.Risk.Parameters(), logger)
		if err != nil {
			log.Fatalf("Failed to create agent: %v", err)
		}
		coordinator.RegisterAgent(agent)
	}

	lg := ledger.New(db.Pool, logger)
	notifier := services.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)

	swarmService := services.NewSwarmService(cfg, reg, sc, coordinator, lg, notifier, logger)
	if err := swarmService.Start(); err != nil {
		log.Fatalf("Failed to start swarm service: %v", err)
	}
	defer swarmService.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, db, redis,
		handlers.NewOpportunityHandler(sc, reg, cfg.Risk.Parameters()),
		handlers.NewTransactionHandler(lg),
		handlers.NewSwarmHandler(swarmService),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}
