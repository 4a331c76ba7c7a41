package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/localdelivery/pkg/app"
	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/discovery"
	"github.com/example/localdelivery/pkg/grpc"
	"github.com/example/localdelivery/pkg/logging"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/config.yaml", "path to the config file")
	pflag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting order admin service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	if cfg.Auth.AdminAPIKey == "" {
		logger.Warn("auth.admin_api_key is empty, every admin call will be rejected")
	}

	a, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()

	server := grpc.NewOrderServer(a.Services.Orders, cfg, logger)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	deregister := a.Register(&discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	defer deregister()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	server.Stop()
	logger.Info("Service stopped")
}
