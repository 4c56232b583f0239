package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"skincheck/internal/config"
	"skincheck/internal/container"
	"skincheck/internal/logging"
	"skincheck/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs before exit.
func run() int {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	logger, err := logging.New(logging.Options{
		Level:      appConfig.Logging.Level,
		Dir:        appConfig.Logging.Dir,
		MaxSizeMB:  appConfig.Logging.MaxSizeMB,
		MaxBackups: appConfig.Logging.MaxBackups,
		Console:    true,
	})
	if err != nil {
		log.Printf("Failed to initialize logging: %v", err)
		return 1
	}
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create dependency injection container
	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		logger.Error("Failed to create application container: %v", err)
		_ = logger.Sync()
		return 1
	}
	defer func() {
		if err := appContainer.Shutdown(); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	if err := appContainer.Init(ctx); err != nil {
		logger.Error("Failed to initialize container: %v", err)
		return 1
	}

	// Initialize web server
	server := ui.NewServer(appContainer.Prediction, appContainer.Dashboard, logger)
	if err := server.Initialize(); err != nil {
		logger.Error("Failed to initialize server: %v", err)
		return 1
	}

	logger.Info("Application started in %s mode", appConfig.Env)
	if err := server.Run(ctx, appConfig.Server.Addr()); err != nil {
		logger.Error("Server failed: %v", err)
		return 1
	}
	return 0
}
