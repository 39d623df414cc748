// Package main is the entry point for the answercache service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/answercache/answercache/internal/api"
	"github.com/answercache/answercache/internal/cache"
	"github.com/answercache/answercache/internal/config"
	"github.com/answercache/answercache/internal/llm"
	"github.com/answercache/answercache/internal/service"
	"github.com/answercache/answercache/pkg/observability"
)

var (
	// Version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("answercache\nVersion: %s\nGit Commit: %s\n", version, gitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewStandardLoggerWithLevel("answercache", cfg.Service.LogLevel)
	logger.Info("Starting answercache", map[string]interface{}{
		"version":    version,
		"git_commit": gitCommit,
		"port":       cfg.Service.Port,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Address,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.Database,
		DialTimeout: cfg.Redis.DialTimeout,
		PoolSize:    cfg.Redis.PoolSize,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// A down store is not fatal: the service degrades to always-call-backend
	// and the health endpoint reports the condition.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable at startup", map[string]interface{}{
			"address": cfg.Redis.Address,
			"error":   err.Error(),
		})
	}

	store := cache.NewStore(redisClient, cache.Config{
		Prefix:        cfg.Cache.Prefix,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		ScanBatchSize: cfg.Cache.ScanBatchSize,
	}, logger)

	llmClient := llm.NewClient(cfg.OpenAI, logger)
	if !llmClient.Configured() {
		logger.Warn("OPENAI_API_KEY not set; query requests will fail until configured", nil)
	}

	orchestrator := service.NewOrchestrator(store, llmClient, llmClient, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestIDMiddleware())
	router.Use(api.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(api.RateLimitMiddleware(cfg.Service.RequestsPerSecond, cfg.Service.BurstSize))

	handler := api.NewHandler(orchestrator, store, logger)
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", map[string]interface{}{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", map[string]interface{}{
			"signal": sig.String(),
		})
	case err := <-serverErr:
		logger.Error("HTTP server failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Info("Shutdown complete", nil)
}
