package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"millionx-backend/infrastructure/config"
	"millionx-backend/infrastructure/di"
	"millionx-backend/interfaces/http/rest"
	"millionx-backend/interfaces/http/rest/handlers"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Create router
	router := rest.NewRouter(
		cfg,
		container.AuthService,
		handlers.NewAuthHandler(container.AuthService, container.Logger, cfg.SecureCookies, cfg.SessionTTL),
		handlers.NewSessionHandler(container.CommandBus, container.QueryBus, container.Controller, container.Logger),
		handlers.NewAIHandler(container.AIGateway, container.Logger),
		handlers.NewUserHandler(container.UserRepo, container.AIGateway, container.Logger),
		container.Metrics,
		func() error { return container.DB.PingContext(ctx) },
		container.Logger,
	)

	// Setup routes
	handler := router.Setup()

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Expired login sessions and spent magic links are swept hourly
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := container.AuthService.SweepExpired(ctx); err != nil {
					container.Logger.Warn("session sweep failed", zap.Error(err))
				}
			}
		}
	}()

	// Start server in goroutine
	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	// Flush pending session writes before closing the store
	container.Controller.Close()

	if err := container.Tunables.Close(); err != nil {
		container.Logger.Warn("Tunables watcher close error", zap.Error(err))
	}
	if err := container.DB.Close(); err != nil {
		container.Logger.Error("Database close error", zap.Error(err))
	}

	// Clean up resources
	if err := container.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
