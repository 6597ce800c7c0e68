package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "surge_queue_"

type Metrics struct {
	published     prometheus.Counter
	publishErrors prometheus.Counter
	received      prometheus.Counter
	acked         prometheus.Counter
	requeued      prometheus.Counter
	deadLettered  prometheus.Counter
}

var (
	metrics *Metrics
	once    sync.Once
)

func Get() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			published: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "messages_published",
				Help: "Number of messages accepted onto the main channel",
			}),
			publishErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "publish_errors",
				Help: "Number of failed publish attempts",
			}),
			received: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "messages_received",
				Help: "Number of message deliveries to consumers, including redeliveries",
			}),
			acked: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "messages_acked",
				Help: "Number of messages acknowledged and removed",
			}),
			requeued: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "messages_requeued",
				Help: "Number of expired visibility leases returned to the main channel",
			}),
			deadLettered: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "messages_dead_lettered",
				Help: "Number of messages moved to the dead-letter channel",
			}),
		}
	})
	return metrics
}

func (m *Metrics) RecordPublished()         { m.published.Inc() }
func (m *Metrics) RecordPublishError()      { m.publishErrors.Inc() }
func (m *Metrics) RecordReceived(n int)     { m.received.Add(float64(n)) }
func (m *Metrics) RecordAcked()             { m.acked.Inc() }
func (m *Metrics) RecordRequeued(n int)     { m.requeued.Add(float64(n)) }
func (m *Metrics) RecordDeadLettered(n int) { m.deadLettered.Add(float64(n)) }
