package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"skyprice/internal/config"
	"skyprice/internal/database"
	"skyprice/internal/logger"
	"skyprice/internal/pricefeed"
	"skyprice/internal/service"
)

func main() {
	configPath := flag.String("config", "conf/config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.InitLogger(config.LogConfig{Console: true}, "skyprice-price-processing")
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger.InitLogger(cfg.Log, "skyprice-price-processing")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Connect(ctx, cfg.Mongo)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Kafka.Broker,
		"group.id":          cfg.Kafka.GroupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		logger.Log.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}

	if err := consumer.Subscribe(cfg.Kafka.Topic, nil); err != nil {
		logger.Log.Fatal("Failed to subscribe to Kafka topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}
	logger.Log.Info("Listening for price-sent events",
		zap.String("broker", cfg.Kafka.Broker),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
	)

	processor := pricefeed.NewProcessor(service.NewAlertService(store))
	runErr := processor.Run(ctx, consumer)
	if runErr != nil {
		logger.Log.Error("Price consumer stopped", zap.Error(runErr))
	}

	err = multierr.Combine(consumer.Close(), store.Close(context.Background()))
	if err != nil {
		logger.Log.Error("Shutdown completed with errors", zap.Error(err))
	}
}
