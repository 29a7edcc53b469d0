package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (c *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestWithBindsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel).With(String("series_id", "DGS10"))

	l.Info("stage done", String("stage", "FETCHING"), Duration("duration_ms", 1500*time.Millisecond))
	l.Debug("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "DGS10", entry["series_id"])
	assert.Equal(t, "FETCHING", entry["stage"])
	assert.Equal(t, float64(1500), entry["duration_ms"])
	assert.Equal(t, "stage done", entry["message"])
}

func TestCollectorAggregatesRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	child := l.With(String("invocation_id", "abc"))
	for i := 0; i < 3; i++ {
		child.Error("fetch failed", Error(errors.New("timeout")))
	}
	child.Warn("ignored at default levels")
	assert.Equal(t, 1, l.collector.Pending())

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1)
	got := pub.batches[0][0]
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, "abc", got.Fields["invocation_id"])
	assert.Equal(t, "timeout", got.Fields["error"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stderr"})
	assert.Error(t, err)
}
