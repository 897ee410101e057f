// Command price_publisher replays price-sent events onto Kafka. It reads one
// JSON object {"id": "...", "price": ...} per line from stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"os"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"skyprice/internal/config"
	"skyprice/internal/logger"
	"skyprice/internal/pricefeed"
)

const flushTimeoutMs = 10000

func newKafkaProducer(broker string) *kafka.Producer {
	p, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": broker})
	if err != nil {
		logger.Log.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	return p
}

func publish(producer *kafka.Producer, topic string, msg pricefeed.Message) error {
	value, err := pricefeed.Encode(msg)
	if err != nil {
		return err
	}
	return producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(msg.ID),
		Value:          value,
	}, nil)
}

// logDeliveries reports the broker's verdict for each produced message.
func logDeliveries(producer *kafka.Producer) {
	for e := range producer.Events() {
		m, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if m.TopicPartition.Error != nil {
			logger.Log.Error("Delivery failed", zap.ByteString("key", m.Key), zap.Error(m.TopicPartition.Error))
			continue
		}
		logger.Log.Info("Delivered price event", zap.ByteString("key", m.Key), zap.String("partition", m.TopicPartition.String()))
	}
}

func main() {
	kafkaCfg := config.LoadKafka()
	broker := flag.String("broker", kafkaCfg.Broker, "Kafka bootstrap servers")
	topic := flag.String("topic", kafkaCfg.Topic, "Topic carrying price-sent events")
	flag.Parse()

	logger.InitLogger(config.LogConfig{Console: true, Level: "info"}, "skyprice-price-publisher")
	defer logger.Sync()

	producer := newKafkaProducer(*broker)
	defer producer.Close()
	go logDeliveries(producer)

	published := 0
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg pricefeed.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			logger.Log.Warn("Skipping unparsable line", zap.ByteString("line", line), zap.Error(err))
			continue
		}
		if err := publish(producer, *topic, msg); err != nil {
			logger.Log.Error("Error producing Kafka message", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		published++
	}
	if err := scanner.Err(); err != nil {
		logger.Log.Error("Failed to read stdin", zap.Error(err))
	}

	if remaining := producer.Flush(flushTimeoutMs); remaining > 0 {
		logger.Log.Warn("Messages left undelivered", zap.Int("remaining", remaining))
	}
	logger.Log.Info("Publishing finished", zap.Int("published", published), zap.String("topic", *topic))
}
