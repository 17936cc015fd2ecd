package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sqlite-benchmark/internal/cache"
	"sqlite-benchmark/internal/config"
	"sqlite-benchmark/internal/database"
	"sqlite-benchmark/internal/server"
	"sqlite-benchmark/internal/workloads/crud"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	logger := log.New(os.Stdout, "benchmark-server ", log.LstdFlags)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	handle, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer handle.Close()

	c := cache.New(handle, &crud.Test{}, crud.DefaultPhaseBudget, logger)
	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.New(c, cfg.Server.StaticDir, logger).Handler(),
	}

	go func() {
		logger.Printf("Listening on %s", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("Shutdown: %v", err)
	}
}
