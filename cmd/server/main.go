package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"towerdef/internal/config"
	"towerdef/internal/httpapi"
	"towerdef/internal/logging"
	"towerdef/internal/registry"
)

func main() {
	// .env is optional; real deployments set the variables directly
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.LogFile)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New(ctx, cfg, log)
	handler := httpapi.SetupRoutes(reg, log)

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	go func() {
		log.Infof("towerdef server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	reg.Inbox() <- registry.Shutdown{}
}
