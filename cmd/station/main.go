package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/specimen-imaging/labelstation/internal/config"
	"github.com/specimen-imaging/labelstation/internal/container"
	"github.com/specimen-imaging/labelstation/internal/logger"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	if path := os.Getenv("STATION_CONFIG"); path != "" {
		if _, err := c.Service().LoadProjectConfig(path); err != nil {
			logger.WithError(err).WithField("path", path).Warn("Startup project config not loaded")
		}
	}

	server := &http.Server{
		Addr:        cfg.ServerAddress(),
		Handler:     c.Handler(),
		ReadTimeout: cfg.RequestTimeout,
		// previews and captures can be slow on a busy station
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address":     cfg.ServerAddress(),
			"output_root": cfg.OutputRoot,
			"project":     cfg.Project,
		}).Info("Starting label station")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down station...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	c.Close()

	logger.Info("Station exited")
}
