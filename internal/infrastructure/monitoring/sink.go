package monitoring

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solace-automations/intentflow/internal/eventbus"
)

// Sink adapts the Event Protocol (§4.7) into OpenTelemetry spans and
// Prometheus observations, registered as just another eventbus.Sink
// alongside the SSE/WebSocket/Kafka sinks a run's Bus fans out to — neither
// the Doer nor the Thinker need any awareness that tracing/metrics exist.
type Sink struct {
	tracer  trace.Tracer
	metrics *Metrics

	mu        sync.Mutex
	nodeSpans map[string]trace.Span
	openWaves map[string]int
}

// NewSink wraps a tracer and a Metrics collector as one Sink.
func NewSink(tracer trace.Tracer, metrics *Metrics) *Sink {
	return &Sink{
		tracer:    tracer,
		metrics:   metrics,
		nodeSpans: make(map[string]trace.Span),
		openWaves: make(map[string]int),
	}
}

func nodeKey(runID, nodeID string) string { return runID + "|" + nodeID }

// Publish implements eventbus.Sink.
func (s *Sink) Publish(e eventbus.Event) error {
	switch e.Kind {
	case eventbus.KindNodeStart:
		s.startNode(e)
	case eventbus.KindNodeComplete:
		s.completeNode(e)
	case eventbus.KindRunComplete, eventbus.KindRunError:
		s.completeRun(e)
	case eventbus.KindStage:
		s.recordStage(e)
	}
	return nil
}

func (s *Sink) startNode(e eventbus.Event) {
	_, span := s.tracer.Start(context.Background(), "doer.node",
		trace.WithTimestamp(e.Timestamp),
		trace.WithAttributes(
			attribute.String("run_id", e.RunID),
			attribute.String("node_id", e.NodeID),
			attribute.String("block_id", e.BlockID),
		),
	)

	s.mu.Lock()
	s.nodeSpans[nodeKey(e.RunID, e.NodeID)] = span
	s.openWaves[e.RunID]++
	concurrent := s.openWaves[e.RunID]
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveWave(concurrent)
	}
}

func (s *Sink) completeNode(e eventbus.Event) {
	key := nodeKey(e.RunID, e.NodeID)

	s.mu.Lock()
	span, ok := s.nodeSpans[key]
	delete(s.nodeSpans, key)
	if s.openWaves[e.RunID] > 0 {
		s.openWaves[e.RunID]--
	}
	s.mu.Unlock()

	status, _ := payloadString(e.Payload, "status")
	durationSeconds := payloadDurationSeconds(e.Payload)

	if ok {
		if status == "failed" {
			span.SetStatus(codes.Error, payloadErrorMessage(e.Payload))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End(trace.WithTimestamp(e.Timestamp))
	}

	if s.metrics != nil {
		s.metrics.ObserveNode(e.BlockID, status, durationSeconds)
	}
}

func (s *Sink) completeRun(e eventbus.Event) {
	s.mu.Lock()
	delete(s.openWaves, e.RunID)
	s.mu.Unlock()

	if s.metrics == nil {
		return
	}
	status, ok := payloadString(e.Payload, "status")
	if !ok {
		status = "unknown"
	}
	s.metrics.ObserveRun(status)
}

func (s *Sink) recordStage(e eventbus.Event) {
	if s.metrics == nil {
		return
	}
	if stage, ok := payloadString(e.Payload, "stage"); ok {
		s.metrics.ObserveThinkerStage(stage)
	}
}

func payloadString(payload any, key string) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}

func payloadErrorMessage(payload any) string {
	v, _ := payloadString(payload, "error")
	return v
}

func payloadDurationSeconds(payload any) float64 {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0
	}
	switch v := m["duration_ms"].(type) {
	case int64:
		return time.Duration(v * int64(time.Millisecond)).Seconds()
	case int:
		return time.Duration(int64(v) * int64(time.Millisecond)).Seconds()
	case float64:
		return time.Duration(int64(v) * int64(time.Millisecond)).Seconds()
	default:
		return 0
	}
}
