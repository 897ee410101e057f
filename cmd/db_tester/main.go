package main

import (
	"context"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"skyprice/internal/config"
	"skyprice/internal/database"
	"skyprice/internal/logger"
)

func main() {
	configPath := flag.String("config", "conf/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	logger.InitLogger(config.LogConfig{Console: true, Level: "info"}, "skyprice-db-tester")
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	store, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		logger.Log.Fatal("Database connection failed", zap.Error(err))
	}
	defer store.Close(context.Background())

	if err := store.Ping(ctx); err != nil {
		logger.Log.Fatal("Database ping failed", zap.Error(err))
	}

	fmt.Printf("Successfully connected to %s.%s\n", cfg.Mongo.Database, cfg.Mongo.Collection)
}
