package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	lastMessage kafka.Message
	closeCalled bool
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) > 0 {
		m.lastMessage = msgs[0]
	}
	return nil
}

func (m *mockWriter) Close() error {
	m.closeCalled = true
	return nil
}

func TestNewKafkaSink_NoBrokersReturnsNilSink(t *testing.T) {
	sink, err := NewKafkaSink(nil, "events")
	assert.NoError(t, err)
	assert.Nil(t, sink)
}

func TestKafkaSink_PublishMarshalsEventAsJSON(t *testing.T) {
	mw := &mockWriter{}
	sink := &KafkaSink{writer: mw}

	err := sink.Publish(Event{
		Kind:      KindNodeComplete,
		RunID:     "r1",
		NodeID:    "n1",
		Timestamp: time.Now(),
		Payload:   map[string]any{"output": "done"},
	})
	require.NoError(t, err)

	var decoded wireEvent
	require.NoError(t, json.Unmarshal(mw.lastMessage.Value, &decoded))
	assert.Equal(t, "node_complete", decoded.Kind)
	assert.Equal(t, "n1", decoded.NodeID)
	assert.Equal(t, []byte("r1"), mw.lastMessage.Key)
}

func TestKafkaSink_PublishOnNilWriterIsNoop(t *testing.T) {
	var sink *KafkaSink
	assert.NoError(t, sink.Publish(Event{Kind: KindRunStart}))
}

func TestKafkaSink_Close(t *testing.T) {
	mw := &mockWriter{}
	sink := &KafkaSink{writer: mw}
	require.NoError(t, sink.Close())
	assert.True(t, mw.closeCalled)
}
