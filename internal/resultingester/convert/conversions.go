package convert

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/surgeworks/surge/internal/queue"
	"github.com/surgeworks/surge/internal/resultingester/metrics"
	"github.com/surgeworks/surge/internal/resultingester/model"
	"github.com/surgeworks/surge/pkg/api"
)

// ResultConverter turns received envelopes into result rows ready for
// insertion. Envelopes whose payloads do not deserialize into a well-formed
// result record are dropped from the batch and deliberately left un-acked:
// the queue's redelivery and dead-letter policy is the only retry mechanism.
type ResultConverter struct {
	retention time.Duration
	metrics   *metrics.Metrics
}

func NewResultConverter(retention time.Duration, metrics *metrics.Metrics) *ResultConverter {
	return &ResultConverter{
		retention: retention,
		metrics:   metrics,
	}
}

func (c *ResultConverter) Convert(envelopes []*queue.Envelope) *model.ConvertedBatch {
	items := make([]*model.Item, 0, len(envelopes))
	for _, envelope := range envelopes {
		record, err := api.UnmarshalResultRecord(envelope.Payload)
		if err != nil {
			c.metrics.RecordMessageError(metrics.MessageErrorDeserialization)
			log.WithError(err).Warnf("Malformed result record in message %s (attempt %d); leaving for redelivery", envelope.Id, envelope.Attempts)
			continue
		}
		items = append(items, &model.Item{
			Envelope: envelope,
			Row: &model.ResultRow{
				TestId:         record.TestId,
				Timestamp:      record.Timestamp,
				WorkerIndex:    record.WorkerIndex,
				Status:         string(record.Status),
				ResponseTimeMs: record.ResponseTimeMs,
				ExpiresAt:      time.Now().Add(c.retention),
			},
		})
	}
	return &model.ConvertedBatch{Items: items}
}
