package resultingester

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/surgeworks/surge/internal/common"
	"github.com/surgeworks/surge/internal/common/database"
	"github.com/surgeworks/surge/internal/queue"
	"github.com/surgeworks/surge/internal/resultingester/configuration"
	"github.com/surgeworks/surge/internal/resultingester/convert"
	"github.com/surgeworks/surge/internal/resultingester/metrics"
	"github.com/surgeworks/surge/internal/resultingester/model"
	"github.com/surgeworks/surge/internal/resultingester/store"
)

// Run consumes result records from the queue and writes them to the result
// store until ctx is cancelled.
func Run(ctx context.Context, config *configuration.ResultIngesterConfiguration) error {
	log.Info("Result Ingester starting")

	if err := config.Validate(); err != nil {
		return errors.WithMessage(err, "invalid result ingester configuration")
	}

	db, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return errors.WithMessage(err, "error connecting to postgres")
	}
	defer db.Close()

	resultStore := store.NewPostgresResultStore(db)
	if err := resultStore.InitialiseSchema(ctx); err != nil {
		return err
	}

	redisClient := redis.NewUniversalClient(&config.Queue.Redis)
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Error("failed to close queue redis client")
		}
	}()
	resultQueue := queue.NewRedisQueue(redisClient, config.Queue)

	// The reaper drives redelivery and dead-lettering; running one per
	// ingester instance is safe since sweeps are atomic.
	go resultQueue.RunReaper(ctx)

	if config.JanitorInterval > 0 {
		go resultStore.RunJanitor(ctx, config.JanitorInterval)
	}

	shutdownMetricServer := common.ServeMetrics(config.Metrics.Port)
	defer shutdownMetricServer()

	converter := convert.NewResultConverter(config.ResultRetentionPolicy.RetentionDuration, metrics.Get())
	ingester := NewIngester(resultQueue, converter, resultStore, config.BatchSize, config.BatchDuration)

	log.Info("Ingestion pipeline set up. Running until shutdown event received")
	return ingester.Run(ctx)
}

// Ingester is the processing loop: receive a batch, convert, store, ack.
// Envelopes in a batch succeed or fail independently; an envelope is acked
// only once its row is durably stored. Failed or malformed envelopes are
// left un-acked so the queue's redelivery policy applies; the ingester
// never retries locally.
type Ingester struct {
	queue         queue.Queue
	converter     *convert.ResultConverter
	store         store.ResultStore
	batchSize     int
	batchDuration time.Duration
}

func NewIngester(q queue.Queue, converter *convert.ResultConverter, resultStore store.ResultStore, batchSize int, batchDuration time.Duration) *Ingester {
	return &Ingester{
		queue:         q,
		converter:     converter,
		store:         resultStore,
		batchSize:     batchSize,
		batchDuration: batchDuration,
	}
}

func (i *Ingester) Run(ctx context.Context) error {
	for {
		envelopes, err := i.queue.Receive(ctx, i.batchSize, i.batchDuration)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Shutdown event received - closing")
				return nil
			}
			log.WithError(err).Warn("Error receiving from queue; continuing")
			continue
		}
		if len(envelopes) == 0 {
			if ctx.Err() != nil {
				log.Info("Shutdown event received - closing")
				return nil
			}
			continue
		}
		i.ProcessBatch(ctx, envelopes)
	}
}

// ProcessBatch converts and persists one received batch, acking exactly the
// envelopes whose rows were stored.
func (i *Ingester) ProcessBatch(ctx context.Context, envelopes []*queue.Envelope) {
	batch := i.converter.Convert(envelopes)
	if len(batch.Items) == 0 {
		return
	}

	rows := make([]*model.ResultRow, len(batch.Items))
	for n, item := range batch.Items {
		rows[n] = item.Row
	}

	err := i.store.Put(ctx, rows)
	if err == nil {
		i.ack(ctx, batch.Items)
		return
	}
	log.WithError(err).Warnf("Batch insert of %d rows failed; isolating failures row by row", len(rows))

	// A single bad row must not block the rest of the batch.
	for _, item := range batch.Items {
		if err := i.store.Put(ctx, []*model.ResultRow{item.Row}); err != nil {
			log.WithError(err).Warnf("Could not store result from message %s; leaving for redelivery", item.Envelope.Id)
			continue
		}
		i.ack(ctx, []*model.Item{item})
	}
}

func (i *Ingester) ack(ctx context.Context, items []*model.Item) {
	for _, item := range items {
		if err := i.queue.Ack(ctx, item.Envelope); err != nil {
			// The row is already stored, so redelivery of this envelope is
			// harmless: the upsert makes the second write a no-op.
			log.WithError(err).Warnf("Could not ack message %s", item.Envelope.Id)
		}
	}
}
