package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// wireEvent is the JSON shape written to Kafka, flattening Event for
// consumers outside this process.
type wireEvent struct {
	Kind       string    `json:"kind"`
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"user_id,omitempty"`
	PipelineID string    `json:"pipeline_id,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	NodeID     string    `json:"node_id,omitempty"`
	BlockID    string    `json:"block_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}

// kafkaWriter is the subset of *kafka.Writer a KafkaSink needs, narrowed so
// tests can substitute a mock without a running broker.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes every event onto a Kafka topic for durable,
// out-of-process consumers (audit trails, analytics). Optional: a run
// proceeds identically with or without it wired in (§4.7 sinks are
// best-effort fan-out, never load-bearing for the run itself).
type KafkaSink struct {
	writer kafkaWriter
}

// NewKafkaSink builds a sink writing to topic on brokers. Returns nil, nil
// when brokers is empty so callers can treat "no Kafka configured" the same
// as "no sink at all" without a nil-interface footgun.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &KafkaSink{writer: w}, nil
}

// Publish implements Sink.
func (s *KafkaSink) Publish(e Event) error {
	if s == nil || s.writer == nil {
		return nil
	}
	payload, err := json.Marshal(wireEvent{
		Kind:       string(e.Kind),
		Seq:        e.Seq,
		Timestamp:  e.Timestamp,
		UserID:     e.UserID,
		PipelineID: e.PipelineID,
		RunID:      e.RunID,
		SessionID:  e.SessionID,
		NodeID:     e.NodeID,
		BlockID:    e.BlockID,
		Payload:    e.Payload,
	})
	if err != nil {
		return err
	}
	key := e.RunID
	if key == "" {
		key = e.SessionID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  e.Timestamp,
	})
}

// Close shuts down the underlying Kafka writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
