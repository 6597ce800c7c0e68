// Package client is the queue-facing side of the worker output contract.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/surgeworks/surge/internal/common/surgeerrors"
	"github.com/surgeworks/surge/internal/queue"
	"github.com/surgeworks/surge/pkg/api"
)

const (
	publishAttempts = 3
	publishDelay    = 50 * time.Millisecond
)

var (
	publishedCounter prometheus.Counter
	droppedCounter   prometheus.Counter
	metricsOnce      sync.Once
)

func initMetrics() {
	publishedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "surge_publisher_records_published",
		Help: "Number of result records accepted by the queue",
	})
	droppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "surge_publisher_records_dropped",
		Help: "Number of result records dropped after exhausting publish attempts",
	})
}

// Publisher writes result records to the queue on behalf of a worker. A
// record that cannot be published within a small retry budget is dropped and
// counted; losing it is an accepted trade-off, the pipeline has no other
// channel to return it through.
type Publisher struct {
	queue queue.Queue
}

func NewPublisher(q queue.Queue) *Publisher {
	metricsOnce.Do(initMetrics)
	return &Publisher{queue: q}
}

func (p *Publisher) Publish(ctx context.Context, record *api.ResultRecord) error {
	payload, err := record.Marshal()
	if err != nil {
		return err
	}
	err = retry.Do(
		func() error { return p.queue.Publish(ctx, payload) },
		retry.Attempts(publishAttempts),
		retry.Delay(publishDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return surgeerrors.IsNetworkError(err) || surgeerrors.IsRetryableRedisError(err)
		}),
	)
	if err != nil {
		droppedCounter.Inc()
		log.WithError(err).Warnf("Dropping result record for test %s after %d publish attempts", record.TestId, publishAttempts)
		return errors.WithStack(&surgeerrors.ErrMaxRetriesExceeded{
			Message:   fmt.Sprintf("could not publish result record for test %s", record.TestId),
			LastError: err,
		})
	}
	publishedCounter.Inc()
	return nil
}
