package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"estatemerge/config"
	"estatemerge/internal/api"
	"estatemerge/internal/cache"
	"estatemerge/internal/database"
	"estatemerge/internal/integration"
	"estatemerge/internal/models"
	"estatemerge/internal/processor"
	"estatemerge/internal/queue"
	"estatemerge/internal/scheduler"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logger.WithField("driver", cfg.Database.Driver).Info("Opening catalog database")
	store, err := database.Open(cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	// Persist finished catalogs in the background
	catalogQueue := queue.NewCatalogQueue(cfg.BatchProcessing.QueueSize, logger)
	catalogProcessor := processor.NewCatalogProcessor(store, catalogQueue, cfg, logger)
	catalogProcessor.Start()
	catalogQueue.Start()

	handler := api.NewHandler(
		store,
		integration.New(integration.OptionsFromConfig(cfg), logger),
		cache.NewTTLCache[*models.Catalog](cfg.Server.CacheTTL, nil),
		catalogQueue,
		api.Options{ManifestPath: cfg.Server.ManifestPath, DefaultArea: cfg.Integration.Area},
		logger,
	)

	var refresher *scheduler.Scheduler
	if cfg.Server.RefreshInterval > 0 {
		refresher = scheduler.NewScheduler(func(ctx context.Context) error {
			_, err := handler.Refresh(ctx)
			return err
		}, cfg.Server.RefreshInterval, logger)
		refresher.Start()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	api.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down server")
	}

	if refresher != nil {
		refresher.Stop()
	}
	catalogProcessor.Stop()
	catalogQueue.Close()

	logger.Info("Server stopped")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
