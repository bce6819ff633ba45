package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/config"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/KevinKickass/OpenProfinetDevice/internal/system"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.StringP("config", "c", "configs/config.yaml", "path of the configuration file")
	simulate := flag.Bool("simulate", false, "run against the simulated protocol engine and controller")
	hashKey := flag.String("hash-key", "", "print the argon2id hash of an API key and exit")
	flag.Parse()

	// Nur Hash ausgeben, für auth.api_key_hash
	if *hashKey != "" {
		hash, err := auth.NewKeyHasher().HashKey(*hashKey)
		if err != nil {
			log.Fatalf("Failed to hash API key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	// Config laden
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Logger initialisieren
	logger, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Config loaded successfully", zap.String("path", *configPath))

	if !*simulate {
		logger.Fatal("No protocol engine is linked into this binary, start with --simulate")
	}

	lifecycle := system.NewLifecycleManager(cfg, logger, system.Options{})

	// System starten
	if err := lifecycle.Start(); err != nil {
		logger.Error("Failed to start system", zap.Error(err))
		shutdown(lifecycle, cfg, logger)
		os.Exit(1)
	}

	logger.Info("OpenProfinetDevice started successfully")

	// Graceful Shutdown auf Signal oder über die API
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
		if !shutdown(lifecycle, cfg, logger) {
			os.Exit(1)
		}
	case <-lifecycle.Done():
		logger.Info("Shutdown requested via API")
	}

	logger.Info("OpenProfinetDevice stopped successfully")
}

func shutdown(lifecycle *system.LifecycleManager, cfg *config.Config, logger *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := lifecycle.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		return false
	}
	return true
}
