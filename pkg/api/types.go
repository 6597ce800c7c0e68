package api

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Status is the outcome of a single load-test request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailure
}

// LaunchRequest describes one load-test run. All workers started from a
// single request share a run id and differ only in their worker index.
type LaunchRequest struct {
	TargetUrl          string  `json:"targetUrl" validate:"required,url"`
	WorkerCount        int     `json:"workerCount" validate:"gte=1"`
	VirtualUsers       int     `json:"virtualUsers" validate:"gte=1"`
	RequestRatePerUser float64 `json:"requestRatePerUser" validate:"gt=0"`
	DurationSeconds    int     `json:"durationSeconds" validate:"gt=0"`
}

var validate = validator.New()

// Validate checks every field constraint. It is called before any worker is
// started so that an invalid request has no side effects.
func (r *LaunchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.WithMessage(err, "invalid launch request")
	}
	return nil
}

// LaunchResponse is returned to the caller of the launch endpoint.
// FailedIndices is only populated when some workers could not be started;
// callers may re-invoke for just those indices.
type LaunchResponse struct {
	RunId         string `json:"runId"`
	TasksLaunched int    `json:"tasksLaunched"`
	FailedIndices []int  `json:"failedIndices,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ResultRecord is the wire format emitted by workers for every request they
// issue. Timestamps are epoch milliseconds and are monotonically
// non-decreasing per worker, but carry no global ordering across workers.
type ResultRecord struct {
	TestId         string  `json:"testId"`
	Timestamp      int64   `json:"timestamp"`
	Status         Status  `json:"status"`
	ResponseTimeMs float64 `json:"responseTimeMs"`
	WorkerIndex    int     `json:"workerIndex"`
}

// UnmarshalResultRecord deserializes a queue payload and validates its shape.
// Any error here marks the payload as malformed; the caller must not ack the
// enclosing envelope so that queue redelivery and dead-lettering apply.
func UnmarshalResultRecord(payload []byte) (*ResultRecord, error) {
	record := &ResultRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal result record")
	}
	if record.TestId == "" {
		return nil, errors.New("result record has empty testId")
	}
	if record.Timestamp <= 0 {
		return nil, errors.Errorf("result record has invalid timestamp %d", record.Timestamp)
	}
	if !record.Status.Valid() {
		return nil, errors.Errorf("result record has unknown status %q", record.Status)
	}
	if record.ResponseTimeMs < 0 {
		return nil, errors.Errorf("result record has negative response time %f", record.ResponseTimeMs)
	}
	if record.WorkerIndex < 0 {
		return nil, errors.Errorf("result record has negative worker index %d", record.WorkerIndex)
	}
	return record, nil
}

func (r *ResultRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
