package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/order-admin/internal/di"
	"github.com/hanko-field/order-admin/internal/handlers"
	"github.com/hanko-field/order-admin/internal/platform/config"
	"github.com/hanko-field/order-admin/internal/platform/observability"
	"github.com/hanko-field/order-admin/internal/platform/secrets"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	loadOpts := []config.Option{}
	if config.HasSecretReferences() {
		fetcher, err := newSecretFetcher(ctx, logger)
		if err != nil {
			logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
		}
		defer func() {
			if err := fetcher.Close(); err != nil {
				logger.Warn("secret fetcher close error", zap.Error(err))
			}
		}()
		loadOpts = append(loadOpts, config.WithSecretResolver(fetcher))
	}

	cfg, err := config.Load(ctx, loadOpts...)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to initialise tracing", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg,
		di.WithLogger(logger),
		di.WithBuildInfo(buildInfoFromEnv(cfg, startedAt)),
	)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      container.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("order admin api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown error", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Security.Environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	opts := []secrets.Option{secrets.WithLogger(logger.Named("secrets"))}

	project := strings.TrimSpace(os.Getenv("API_SECRET_DEFAULT_PROJECT_ID"))
	if project == "" {
		project = strings.TrimSpace(os.Getenv("API_FIREBASE_PROJECT_ID"))
	}
	if project != "" {
		opts = append(opts, secrets.WithDefaultProject(project))
	}
	if path := strings.TrimSpace(os.Getenv("API_SECRET_FALLBACK_FILE")); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if creds := strings.TrimSpace(os.Getenv("API_FIREBASE_CREDENTIALS_FILE")); creds != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(creds)))
	}
	return secrets.NewFetcher(ctx, opts...)
}
