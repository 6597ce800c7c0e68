package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type (
	DBOperation  string
	MessageError string
)

const (
	DBOperationInsert           DBOperation  = "insert"
	DBOperationRead             DBOperation  = "read"
	DBOperationDelete           DBOperation  = "delete"
	MessageErrorDeserialization MessageError = "deserialization"
	MessageErrorValidation      MessageError = "validation"
)

const metricsPrefix = "surge_result_ingester_"

type Metrics struct {
	dbErrorsCounter *prometheus.CounterVec
	messageErrors   *prometheus.CounterVec
	rowsInserted    prometheus.Counter
}

var (
	m    *Metrics
	once sync.Once
)

func Get() *Metrics {
	once.Do(func() {
		m = &Metrics{
			dbErrorsCounter: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: metricsPrefix + "db_errors",
				Help: "Number of database errors grouped by database operation",
			}, []string{"operation"}),
			messageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: metricsPrefix + "message_errors",
				Help: "Number of result message errors grouped by error type",
			}, []string{"error"}),
			rowsInserted: promauto.NewCounter(prometheus.CounterOpts{
				Name: metricsPrefix + "rows_inserted",
				Help: "Number of result rows written to the store",
			}),
		}
	})
	return m
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	m.dbErrorsCounter.With(map[string]string{"operation": string(operation)}).Inc()
}

func (m *Metrics) RecordMessageError(err MessageError) {
	m.messageErrors.With(map[string]string{"error": string(err)}).Inc()
}

func (m *Metrics) RecordRowsInserted(n int) {
	m.rowsInserted.Add(float64(n))
}
