package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgeworks/surge/internal/queue"
	"github.com/surgeworks/surge/internal/resultingester/metrics"
	"github.com/surgeworks/surge/pkg/api"
)

const testRetention = 90 * 24 * time.Hour

func envelope(payload string) *queue.Envelope {
	return &queue.Envelope{Id: "msg-1", Payload: []byte(payload), Attempts: 1}
}

func TestConvertValidRecord(t *testing.T) {
	converter := NewResultConverter(testRetention, metrics.Get())

	record := &api.ResultRecord{
		TestId:         "run-1",
		Timestamp:      1700000000000,
		Status:         api.StatusSuccess,
		ResponseTimeMs: 12.5,
		WorkerIndex:    1,
	}
	payload, err := record.Marshal()
	require.NoError(t, err)

	before := time.Now()
	batch := converter.Convert([]*queue.Envelope{envelope(string(payload))})
	require.Len(t, batch.Items, 1)

	row := batch.Items[0].Row
	assert.Equal(t, "run-1", row.TestId)
	assert.Equal(t, int64(1700000000000), row.Timestamp)
	assert.Equal(t, string(api.StatusSuccess), row.Status)
	assert.Equal(t, 12.5, row.ResponseTimeMs)
	assert.Equal(t, 1, row.WorkerIndex)
	assert.True(t, row.ExpiresAt.After(before.Add(testRetention-time.Minute)))
	assert.Equal(t, "msg-1", batch.Items[0].Envelope.Id)
}

func TestConvertDropsMalformedPayloads(t *testing.T) {
	converter := NewResultConverter(testRetention, metrics.Get())

	for _, payload := range []string{
		`this is not json`,
		`{}`,
		`{"testId":"run-1"}`,
		`{"testId":"run-1","timestamp":1700000000000,"status":"exploded","responseTimeMs":1,"workerIndex":0}`,
		`{"testId":"run-1","timestamp":-5,"status":"success","responseTimeMs":1,"workerIndex":0}`,
		`{"testId":"run-1","timestamp":1700000000000,"status":"success","responseTimeMs":-1,"workerIndex":0}`,
	} {
		batch := converter.Convert([]*queue.Envelope{envelope(payload)})
		assert.Empty(t, batch.Items, "payload %q should have been dropped", payload)
	}
}

func TestConvertKeepsGoodRecordsFromMixedBatch(t *testing.T) {
	converter := NewResultConverter(testRetention, metrics.Get())

	good, err := (&api.ResultRecord{
		TestId:         "run-1",
		Timestamp:      1700000000000,
		Status:         api.StatusFailure,
		ResponseTimeMs: 30,
		WorkerIndex:    0,
	}).Marshal()
	require.NoError(t, err)

	batch := converter.Convert([]*queue.Envelope{
		{Id: "bad", Payload: []byte(`garbage`), Attempts: 1},
		{Id: "good", Payload: good, Attempts: 1},
	})
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "good", batch.Items[0].Envelope.Id)
}
