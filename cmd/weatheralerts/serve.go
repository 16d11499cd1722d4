package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-weather-alerts/internal/api"
	"github.com/mr1hm/go-weather-alerts/internal/broadcast"
	"github.com/mr1hm/go-weather-alerts/internal/config"
	"github.com/mr1hm/go-weather-alerts/internal/ingestion"
	"github.com/mr1hm/go-weather-alerts/internal/logging"
	"github.com/mr1hm/go-weather-alerts/internal/nws"
	"github.com/mr1hm/go-weather-alerts/internal/observability"
	"github.com/mr1hm/go-weather-alerts/internal/publisher"
	"github.com/mr1hm/go-weather-alerts/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the configured sensors and serve their alerts",
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

func serve() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "sensors", len(cfg.Sensors))

	var history repository.HistoryRepository
	if cfg.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
			logging.Fatalf("Failed to create database directory: %v", err)
		}
		db, err := repository.NewSQLiteDB(cfg.History.Path)
		if err != nil {
			logging.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		history = db
	}

	var snapshots ingestion.SnapshotPublisher
	if cfg.Kafka.Enabled() {
		kp := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer kp.Close()
		snapshots = kp
		slog.Info("publishing snapshots to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	broadcaster := broadcast.NewBroadcaster()

	// One HTTP session shared by every sensor
	client := nws.NewClient(nws.NewHTTPClient(cfg.NWS.RetryMax, logger), cfg.NWS.BaseURL, cfg.NWS.UserAgent)

	mgr := ingestion.NewManager(cfg, client, ingestion.Deps{
		Repo:        history,
		Broadcaster: broadcaster,
		Publisher:   snapshots,
		Metrics:     metrics,
		Logger:      logger,
	})
	mgr.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5)) // 5 req/s global limit

	handler := api.NewHandler(mgr, history, broadcaster)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	broadcaster.Close() // End open event streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
