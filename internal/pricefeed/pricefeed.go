// Package pricefeed records alerted prices published on Kafka by the notifier.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"skyprice/internal/logger"
	"skyprice/internal/models"
	"skyprice/internal/service"
	"skyprice/internal/validators"
)

const pollTimeout = 500 * time.Millisecond

// Message is the price-sent event: the alert that fired and the price it reported.
type Message struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
}

func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

type Outcome int

const (
	Skipped Outcome = iota
	Unchanged
	Recorded
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case Unchanged:
		return "unchanged"
	default:
		return "skipped"
	}
}

// Recorder applies a price update. *service.AlertService satisfies it.
type Recorder interface {
	UpdatePrice(ctx context.Context, req models.UpdatePriceRequest) (bool, error)
}

// MessageReader is the subset of *kafka.Consumer the processor polls.
type MessageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
}

type Processor struct {
	recorder Recorder
}

func NewProcessor(r Recorder) *Processor {
	return &Processor{recorder: r}
}

// Handle records one message value. Malformed messages and unknown alerts are
// skipped; only store and unexpected failures are returned.
func (p *Processor) Handle(ctx context.Context, value []byte) (Outcome, error) {
	var req models.UpdatePriceRequest
	if err := json.Unmarshal(value, &req); err != nil {
		logger.Log.Warn("Skipping undecodable price message", zap.ByteString("value", value), zap.Error(err))
		return Skipped, nil
	}

	updated, err := p.recorder.UpdatePrice(ctx, req)
	var verr *validators.ValidationError
	switch {
	case errors.As(err, &verr):
		logger.Log.Warn("Skipping invalid price message",
			zap.String("field", verr.Field),
			zap.String("reason", verr.Reason),
		)
		return Skipped, nil
	case errors.Is(err, service.ErrNotFound):
		logger.Log.Info("Skipping price message for unknown alert", zap.ByteString("value", value))
		return Skipped, nil
	case err != nil:
		return Skipped, err
	}

	if updated {
		return Recorded, nil
	}
	return Unchanged, nil
}

// Run polls reader until ctx is cancelled, handing every message to Handle.
func (p *Processor) Run(ctx context.Context, reader MessageReader) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := reader.ReadMessage(pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			if errors.As(err, &kerr) && kerr.IsFatal() {
				return err
			}
			logger.Log.Error("Kafka consumer error", zap.Error(err))
			continue
		}

		outcome, err := p.Handle(ctx, msg.Value)
		if err != nil {
			logger.Log.Error("Failed to record alert price",
				zap.String("partition", msg.TopicPartition.String()),
				zap.Error(err),
			)
			continue
		}
		logger.Log.Debug("Processed price message",
			zap.String("partition", msg.TopicPartition.String()),
			zap.Stringer("outcome", outcome),
		)
	}
}
