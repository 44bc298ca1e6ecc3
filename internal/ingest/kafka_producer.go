// Package ingest streams driver location samples to Kafka for downstream
// consumers.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/shiva/ridepool/internal/model"
)

// LocationProducer writes location samples to a Kafka topic, keyed by
// booking id so samples for one trip stay ordered within a partition.
// It implements service.LocationPublisher.
type LocationProducer struct {
	writer *kafka.Writer
}

// NewLocationProducer creates a producer against the given brokers and topic.
func NewLocationProducer(brokers []string, topic string) *LocationProducer {
	return &LocationProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Publish sends one sample.
func (p *LocationProducer) Publish(ctx context.Context, s *model.DriverLocationSample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode location sample: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(s.BookingID, 10)),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write location sample: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *LocationProducer) Close() error {
	return p.writer.Close()
}
