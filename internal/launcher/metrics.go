package launcher

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "surge_launcher_"

type Metrics struct {
	launches            prometheus.Counter
	workersStarted      prometheus.Counter
	workerStartFailures prometheus.Counter
}

var (
	m    *Metrics
	once sync.Once
)

func Get() *Metrics {
	once.Do(func() {
		m = &Metrics{
			launches: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "launches",
				Help: "Number of launch requests that passed validation",
			}),
			workersStarted: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "workers_started",
				Help: "Number of workers started successfully",
			}),
			workerStartFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "worker_start_failures",
				Help: "Number of workers that could not be started after all attempts",
			}),
		}
	})
	return m
}

func (m *Metrics) RecordLaunch()             { m.launches.Inc() }
func (m *Metrics) RecordWorkerStarted()      { m.workersStarted.Inc() }
func (m *Metrics) RecordWorkerStartFailure() { m.workerStartFailures.Inc() }
