package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLab/internal/domain/models"
)

type capturedPublish struct {
	topic string
	key   []byte
	value any
}

type fakeProducer struct {
	sent   []capturedPublish
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value any) error {
	f.sent = append(f.sent, capturedPublish{topic: topic, key: key, value: value})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestPublishRunKeysBySeries(t *testing.T) {
	fp := &fakeProducer{}
	p := &KafkaRunPublisher{producer: fp, topic: "risklab.runs"}

	rec := record("CPIAUCSL", 1)
	require.NoError(t, p.PublishRun(context.Background(), rec))
	require.Len(t, fp.sent, 1)
	assert.Equal(t, "risklab.runs", fp.sent[0].topic)
	assert.Equal(t, "CPIAUCSL", string(fp.sent[0].key))

	b, err := json.Marshal(fp.sent[0].value)
	require.NoError(t, err)
	var decoded models.RunRecord
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, rec.RunID, decoded.RunID)

	require.NoError(t, p.Close())
	assert.True(t, fp.closed)
}
