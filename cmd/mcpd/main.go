// Package main is the entry point for the assistant daemon.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/integrated-assistant/mcp-go/internal/api"
	"github.com/integrated-assistant/mcp-go/internal/backend/vector"
	"github.com/integrated-assistant/mcp-go/internal/component"
	"github.com/integrated-assistant/mcp-go/internal/config"
	"github.com/integrated-assistant/mcp-go/internal/manager"
	"github.com/integrated-assistant/mcp-go/internal/registry"
	"github.com/integrated-assistant/mcp-go/internal/taskstore"
	"github.com/integrated-assistant/mcp-go/internal/tracing"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("starting mcpd",
		slog.String("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
	)

	// Initialize tracing
	tracer, err := tracing.Init(context.Background(), &tracing.Config{
		ServiceName:    "mcpd",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     1.0,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Initialize TaskStore based on configuration
	var store taskstore.TaskStore
	switch cfg.TaskStoreType {
	case "redis":
		redisCfg := taskstore.DefaultRedisConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.TTL = cfg.TaskStoreTTL
		redisStore, err := taskstore.NewRedisStore(redisCfg)
		if err != nil {
			logger.Error("failed to connect to Redis, falling back to memory store", "error", err)
			store = taskstore.NewMemoryStore()
		} else {
			store = redisStore
			logger.Info("using Redis task store", slog.String("url", cfg.RedisURL))
		}
	default:
		store = taskstore.NewMemoryStore()
		logger.Info("using in-memory task store")
	}
	defer store.Close()

	// Shared embedded vector store; both the search and index backends use it
	vectorStore, err := vector.NewStore(vector.StoreConfig{
		PersistPath: cfg.VectorPersistPath,
	}, nil)
	if err != nil {
		logger.Error("failed to open vector store", "error", err)
		os.Exit(1)
	}

	// Components resolve capabilities through the live registry so a reload
	// takes effect without rebuilding them.
	var reg *registry.Registry
	invoker := component.InvokerFunc(func(ctx context.Context, capability string, input types.State) (*types.Result, error) {
		return reg.Catalog().Resolver().Invoke(ctx, capability, input)
	})

	rebuild := func() (*registry.Catalog, error) {
		wiring, err := config.LoadWiring(cfg.WiringFile)
		if err != nil {
			return nil, err
		}
		return buildCatalog(cfg, wiring, invoker, vectorStore, logger)
	}

	// A broken wiring document at startup is fatal; on reload the old
	// catalog stays live instead.
	catalog, err := rebuild()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	reg = registry.NewRegistry(catalog, rebuild, logger)

	logger.Info("catalog built", slog.Int("kinds", len(catalog.Kinds())))

	// Initialize task manager
	mgr := manager.New(store, reg, &manager.Config{
		MaxWorkers: cfg.MaxWorkers,
		QueueSize:  cfg.QueueSize,
		Retention:  cfg.TaskRetention,
	}, logger)
	mgr.Start()

	// Periodic cleanup of old terminal tasks
	reapCtx, stopReaper := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-reapCtx.Done():
				return
			case <-ticker.C:
				if n, err := mgr.Reap(reapCtx); err != nil {
					logger.Warn("task reap failed", "error", err)
				} else if n > 0 {
					logger.Info("reaped terminal tasks", slog.Int("count", n))
				}
			}
		}
	}()

	// Initialize API handlers
	handlers := api.NewHandlers(mgr, reg, store, cfg, logger)
	server := api.NewServer(handlers)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	stopReaper()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := mgr.Stop(ctx); err != nil {
		logger.Error("manager shutdown error", "error", err)
	}
	if err := tracer.Shutdown(ctx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
