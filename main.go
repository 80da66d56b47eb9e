package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"claim-dossier/app"
	"claim-dossier/config"
	"claim-dossier/queue"
	"claim-dossier/storage"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setup Database Connection
	db, err := app.OpenDB(cfg)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	store := storage.NewStore(db, logging)
	index, err := app.VectorIndex(cfg, db, logging)
	if err != nil {
		logging.Fatal("Vector index setup failed", zap.Error(err))
	}
	logging.Info("Running database auto-migration...")
	if err := app.Migrate(ctx, store, index); err != nil {
		logging.Fatal("Migration failed", zap.Error(err))
	}

	// Setup Queue
	redisClient, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		logging.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	jobQueue := queue.New(redisClient, store, cfg.JobStream, cfg.JobGroup, logging)
	if err := jobQueue.EnsureGroup(ctx); err != nil {
		logging.Fatal("Consumer group setup failed", zap.Error(err))
	}

	// Setup Services
	archive, err := app.Archive(ctx, cfg, logging)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	dossierService := app.DossierService(cfg, store, index, archive, logging)
	if len(dossierService.Search.Providers) == 0 {
		logging.Fatal("No valid providers enabled. Check ENABLED_PROVIDERS in .env")
	}
	logging.Info("Active providers loaded", zap.Strings("providers", cfg.Providers()))

	hostname, _ := os.Hostname()
	pool := app.Pool(cfg, jobQueue, store, dossierService, "worker-"+hostname, logging)
	go func() {
		if err := pool.Run(ctx); err != nil {
			logging.Error("Worker pool stopped", zap.Error(err))
		}
	}()

	// Setup Cron: hängende Jobs übernehmen
	cronScheduler := cron.New()
	_, err = cronScheduler.AddFunc(cfg.ReclaimSchedule, func() {
		n, err := pool.Reclaim(ctx, cfg.JobTimeout+time.Minute)
		if err != nil {
			logging.Error("Reclaim failed", zap.Error(err))
			return
		}
		if n > 0 {
			logging.Info("Reclaimed stale jobs", zap.Int("count", n))
		}
	})
	if err != nil {
		logging.Fatal("Invalid RECLAIM_SCHEDULE", zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api := router.Group("/", apiKeyAuthMiddleware(cfg))
	setupDossierRoutes(api, jobQueue, store, logging)

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
	logging.Info("Server stopped")
}
