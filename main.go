package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/13102180531/ExcelQuery/pkg/auth"
	"github.com/13102180531/ExcelQuery/pkg/config"
	"github.com/13102180531/ExcelQuery/pkg/filter"
	"github.com/13102180531/ExcelQuery/pkg/handlers"
	"github.com/13102180531/ExcelQuery/pkg/llm"
	"github.com/13102180531/ExcelQuery/pkg/logging"
	"github.com/13102180531/ExcelQuery/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("upload_dir", cfg.Storage.UploadDir),
		zap.String("default_provider", cfg.LLM.APIType))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wire services
	authService, err := auth.NewAuthService(cfg.Auth, logger)
	if err != nil {
		logger.Fatal("Failed to build auth service", zap.Error(err))
	}
	authMiddleware := auth.NewMiddleware(authService, logger)

	fileService := services.NewFileService(cfg.Storage, logger)
	resultCache := services.NewResultCache(cfg.Results, logger)
	resultCache.Start(ctx)

	factory := llm.NewFactory(cfg.LLM, logger)
	evaluator := filter.NewEvaluator(logger)
	queryService := services.NewQueryService(cfg.Storage, fileService, factory, evaluator, resultCache, logger)

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(authService, logger).RegisterRoutes(mux)
	handlers.NewFilesHandler(cfg.Storage, fileService, authMiddleware, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(queryService, authMiddleware, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting excelquery",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown did not finish cleanly", zap.Error(err))
	}
}
