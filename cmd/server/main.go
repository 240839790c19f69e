package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/eGGnogSC/paysync/config"
	"github.com/eGGnogSC/paysync/infrastructure"
	"github.com/eGGnogSC/paysync/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := infrastructure.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer container.Shutdown()

	// One-time contract check against the accounting API
	checkCtx, checkCancel := context.WithTimeout(ctx, 15*time.Second)
	container.VerifyAccountingContract(checkCtx)
	checkCancel()

	router := mux.NewRouter()
	routes.SetupRoutes(
		router,
		container.AuthHandler,
		container.AuthService,
		container.SyncHandler,
		container.WebhookHandler,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Log.Fatal("server shutdown failed", zap.Error(err))
	}

	container.Log.Info("server gracefully stopped")
}
