package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LavaJover/shvark-smm-service/internal/app/background"
	"github.com/LavaJover/shvark-smm-service/internal/app/setup"
	"github.com/LavaJover/shvark-smm-service/internal/config"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/grpcapi"
	"github.com/LavaJover/shvark-smm-service/internal/delivery/http/handlers"
	"github.com/LavaJover/shvark-smm-service/internal/infrastructure/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()

	appLogger, logCloser, err := logger.New(cfg.LogConfig)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(appLogger)

	if cfg.Auth.JWTSecret == "" {
		log.Fatalf("auth.jwt_secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := setup.InitializeDependencies(cfg, appLogger)
	if err != nil {
		log.Fatalf("failed to init dependencies: %v", err)
	}
	defer deps.Close()

	uc, err := setup.InitializeUseCases(ctx, deps)
	if err != nil {
		log.Fatalf("failed to init usecases: %v", err)
	}
	if err := uc.ListenProviderEvents(ctx, deps); err != nil {
		log.Fatalf("failed to subscribe to provider events: %v", err)
	}

	tasks, err := background.NewBackgroundTasks(uc.Sync, uc.Currencies, cfg.Sync, appLogger)
	if err != nil {
		log.Fatalf("failed to schedule background tasks: %v", err)
	}

	// HTTP
	h := handlers.NewHandler(uc.Orders, uc.Ledger, uc.Registry, uc.Sync, uc.Currencies, appLogger)
	metricsHandler := promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{})
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:      handlers.NewRouter(h, []byte(cfg.Auth.JWTSecret), metricsHandler),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	// gRPC health
	grpcServer := grpcapi.NewServer(deps.Probes(), appLogger)
	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.GRPCServer.Host, cfg.GRPCServer.Port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	go grpcServer.Watch(ctx, 15*time.Second)

	errCh := make(chan error, 2)
	go func() {
		appLogger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		appLogger.Info("grpc server started", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	tasks.Start()

	select {
	case <-ctx.Done():
		appLogger.Info("shutdown signal received")
	case err := <-errCh:
		appLogger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-tasks.Stop().Done():
	case <-shutdownCtx.Done():
		appLogger.Warn("background tasks did not stop in time")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", "error", err)
	}
	grpcServer.Stop()
	uc.Notifier.Wait()
	appLogger.Info("service stopped")
}
