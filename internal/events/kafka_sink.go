package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes events to a Kafka topic. The writer is asynchronous so
// a slow or unreachable broker never stalls a trade; delivery failures are
// logged from the completion callback.
type KafkaSink struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewKafkaSink constructs a sink for brokers/topic
func NewKafkaSink(brokers []string, topic, clientID string, log zerolog.Logger) *KafkaSink {
	sinkLog := log.With().Str("service", "kafka_sink").Str("topic", topic).Logger()
	return &KafkaSink{writer: newKafkaWriter(brokers, topic, clientID, sinkLog), log: sinkLog}
}

func newKafkaWriter(brokers []string, topic, clientID string, log zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 200 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Transport: &kafka.Transport{
			ClientID:    clientID,
			DialTimeout: 10 * time.Second,
		},
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(messages)).Msg("Kafka delivery failed")
			}
		},
	}
}

// Publish implements Sink. Events are keyed by user so one user's events
// stay ordered within a partition.
func (s *KafkaSink) Publish(ctx context.Context, e Event) error {
	msg, err := encodeKafkaMessage(e)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func encodeKafkaMessage(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	key := e.UserID
	if key == "" {
		key = string(e.Type)
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  e.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "module", Value: []byte(e.Module)},
		},
	}, nil
}
