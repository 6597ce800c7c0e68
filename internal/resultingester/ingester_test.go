package resultingester

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surgeworks/surge/internal/common/configuration"
	"github.com/surgeworks/surge/internal/queue"
	"github.com/surgeworks/surge/internal/resultingester/convert"
	"github.com/surgeworks/surge/internal/resultingester/metrics"
	"github.com/surgeworks/surge/internal/resultingester/store"
	"github.com/surgeworks/surge/pkg/api"
)

const (
	testRetention         = 90 * 24 * time.Hour
	testVisibilityTimeout = 300 * time.Second
)

func testPipeline(t *testing.T) (*Ingester, *queue.RedisQueue, *store.InMemoryResultStore) {
	s := miniredis.RunT(t)
	db := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{s.Addr()}})
	t.Cleanup(func() { _ = db.Close() })
	q := queue.NewRedisQueue(db, configuration.QueueConfig{
		Name:                "results",
		VisibilityTimeout:   testVisibilityTimeout,
		MaxDeliveries:       3,
		Retention:           4 * 24 * time.Hour,
		DeadLetterRetention: 14 * 24 * time.Hour,
		PollInterval:        10 * time.Millisecond,
	})
	resultStore := store.NewInMemoryResultStore()
	converter := convert.NewResultConverter(testRetention, metrics.Get())
	return NewIngester(q, converter, resultStore, 10, 50*time.Millisecond), q, resultStore
}

func publishRecord(t *testing.T, q *queue.RedisQueue, record *api.ResultRecord) {
	payload, err := record.Marshal()
	require.NoError(t, err)
	require.NoError(t, q.Publish(context.Background(), payload))
}

func record(testId string, timestamp int64, workerIndex int) *api.ResultRecord {
	return &api.ResultRecord{
		TestId:         testId,
		Timestamp:      timestamp,
		Status:         api.StatusSuccess,
		ResponseTimeMs: 10,
		WorkerIndex:    workerIndex,
	}
}

func TestProcessBatchStoresAndAcks(t *testing.T) {
	ingester, q, resultStore := testPipeline(t)
	ctx := context.Background()

	publishRecord(t, q, record("run-1", 3000, 1))
	publishRecord(t, q, record("run-1", 1000, 0))
	publishRecord(t, q, record("run-1", 2000, 1))

	envelopes, err := q.Receive(ctx, 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, envelopes, 3)
	ingester.ProcessBatch(ctx, envelopes)

	rows, err := resultStore.Query(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1000), rows[0].Timestamp)
	assert.Equal(t, int64(2000), rows[1].Timestamp)
	assert.Equal(t, int64(3000), rows[2].Timestamp)

	// Everything was acked, so nothing comes back even after leases expire.
	requeued, deadlettered, err := q.Sweep(ctx, time.Now().Add(2*testVisibilityTimeout))
	require.NoError(t, err)
	assert.Zero(t, requeued)
	assert.Zero(t, deadlettered)
}

func TestMalformedEnvelopeIsLeftForRedelivery(t *testing.T) {
	ingester, q, resultStore := testPipeline(t)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte(`garbage`)))
	publishRecord(t, q, record("run-1", 1000, 0))

	envelopes, err := q.Receive(ctx, 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, envelopes, 2)
	ingester.ProcessBatch(ctx, envelopes)

	// The good record made it through; the malformed one was not acked and
	// returns to the main channel once its lease expires.
	rows, err := resultStore.Query(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	requeued, _, err := q.Sweep(ctx, time.Now().Add(2*testVisibilityTimeout))
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
}

func TestStoreFailureLeavesEnvelopesUnacked(t *testing.T) {
	ingester, q, resultStore := testPipeline(t)
	ctx := context.Background()

	publishRecord(t, q, record("run-1", 1000, 0))
	publishRecord(t, q, record("run-1", 2000, 0))

	resultStore.FailPutsWith(errors.New("connection refused"))
	envelopes, err := q.Receive(ctx, 10, 50*time.Millisecond)
	require.NoError(t, err)
	ingester.ProcessBatch(ctx, envelopes)

	rows, err := resultStore.Query(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Store back up: redelivery gets the records in.
	resultStore.FailPutsWith(nil)
	requeued, _, err := q.Sweep(ctx, time.Now().Add(2*testVisibilityTimeout))
	require.NoError(t, err)
	assert.Equal(t, 2, requeued)

	envelopes, err = q.Receive(ctx, 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, envelopes, 2)
	ingester.ProcessBatch(ctx, envelopes)

	rows, err = resultStore.Query(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRedeliveredEnvelopeIsIdempotent(t *testing.T) {
	ingester, q, resultStore := testPipeline(t)
	ctx := context.Background()

	publishRecord(t, q, record("run-1", 1000, 0))

	envelopes, err := q.Receive(ctx, 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, envelopes, 1)

	// Process the same delivery twice, as happens when the processor stores
	// a row but dies before acking and the envelope is redelivered.
	ingester.ProcessBatch(ctx, envelopes)
	ingester.ProcessBatch(ctx, envelopes)

	rows, err := resultStore.Query(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPoisonMessageEndsUpDeadLetteredAndNotStored(t *testing.T) {
	ingester, q, resultStore := testPipeline(t)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte(`not a result record`)))

	// Four delivery attempts against a MaxDeliveries of 3, then quarantine.
	for i := 0; i < 4; i++ {
		envelopes, err := q.Receive(ctx, 10, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, envelopes, 1)
		ingester.ProcessBatch(ctx, envelopes)
		_, _, err = q.Sweep(ctx, time.Now().Add(2*testVisibilityTimeout))
		require.NoError(t, err)
	}

	envelopes, err := q.Receive(ctx, 10, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, envelopes)

	letters, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, []byte(`not a result record`), letters[0].Payload)

	rows, err := resultStore.Query(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
