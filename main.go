package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"swarmctl/internal/logger"
)

// main is the entry point for the swarm controller. It loads the
// configuration, starts the UDP listener with its display and notification
// pipeline, and runs until interrupted.
func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "swarmctl")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting swarm controller",
		zap.Int("port", cfg.Swarm.Port),
		zap.String("display", cfg.Display.Driver),
		zap.Strings("notify", cfg.Notify.Backends),
		zap.Bool("gpio", cfg.GPIO.Enabled),
	)

	svc, err := newService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create controller service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	// Wait for interrupt signal.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	if err := svc.Stop(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("Controller stopped")
}
