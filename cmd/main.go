package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pandemonium-osu/pandemonium-backend/internal/db"
	"github.com/pandemonium-osu/pandemonium-backend/internal/handlers"
	"github.com/pandemonium-osu/pandemonium-backend/internal/middleware"
	"github.com/pandemonium-osu/pandemonium-backend/internal/observability"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/envutil"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/osuapi"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/qdrant"
	"github.com/pandemonium-osu/pandemonium-backend/internal/queue"
	"github.com/pandemonium-osu/pandemonium-backend/internal/repos"
	"github.com/pandemonium-osu/pandemonium-backend/internal/server"
	"github.com/pandemonium-osu/pandemonium-backend/internal/services"
	"github.com/pandemonium-osu/pandemonium-backend/internal/workers"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "pandemonium-backend",
		Environment: envutil.Str("ENVIRONMENT", "development"),
		Version:     envutil.Str("SERVICE_VERSION", "dev"),
	})

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	beatmapsetRepo := repos.NewBeatmapsetRepo(thePG, log)
	beatmapRepo := repos.NewBeatmapRepo(thePG, log)
	playerRepo := repos.NewPlayerRepo(thePG, log)
	activityRepo := repos.NewPlayerActivityRepo(thePG, log)

	// Vector index
	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		log.Fatal("qdrant config invalid", "error", err)
	}
	index, err := qdrant.NewClient(log, qdrantCfg)
	if err != nil {
		log.Fatal("qdrant init failed", "error", err)
	}
	if err := index.EnsureCollection(ctx); err != nil {
		log.Fatal("qdrant collection setup failed", "error", err)
	}

	// Redis queue
	jobQueue, err := queue.New(log)
	if err != nil {
		log.Fatal("redis queue init failed", "error", err)
	}
	defer jobQueue.Close()

	// Upstream API
	osuClient, err := osuapi.NewClient(log, osuapi.ResolveConfigFromEnv())
	if err != nil {
		log.Fatal("osu api client init failed", "error", err)
	}

	// Services
	authService, err := services.NewAuthService(log, osuClient, playerRepo, jobQueue, envutil.Str("JWT_SECRET", ""))
	if err != nil {
		log.Fatal("auth service init failed", "error", err)
	}
	similarityService := services.NewSimilarityService(log, index, beatmapRepo, beatmapsetRepo)
	discoveryService := services.NewDiscoveryService(log, index, activityRepo, beatmapRepo, beatmapsetRepo)

	// Workers
	beatmapsetWorker := workers.NewBeatmapsetWorker(log, thePG, osuClient, index, beatmapsetRepo, beatmapRepo)
	playerWorker := workers.NewPlayerWorker(log, osuClient, jobQueue, playerRepo, activityRepo)
	go workers.NewWorker(log, jobQueue, queue.BeatmapQueue, beatmapsetWorker.Process).Run(ctx)
	go workers.NewWorker(log, jobQueue, queue.PlayerQueue, playerWorker.Process).Run(ctx)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		OAuthHandler:      handlers.NewOAuthHandler(log, authService),
		BeatmapsetHandler: handlers.NewBeatmapsetHandler(log, similarityService),
		DiscoveryHandler:  handlers.NewDiscoveryHandler(log, discoveryService),
		AuthMiddleware:    middleware.NewAuthMiddleware(log, authService, playerRepo),
		AllowOrigins:      splitOrigins(envutil.Str("CORS_ALLOW_ORIGINS", "")),
	})

	addr := ":" + envutil.Str("PORT", "8080")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", "error", err)
	}
	if shutdownOTel != nil {
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn("otel shutdown failed", "error", err)
		}
	}
}

func splitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
