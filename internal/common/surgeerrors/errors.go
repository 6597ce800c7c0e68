// Package surgeerrors contains the error types shared across the launch and
// ingestion pipeline. Transient errors are never retried locally by the
// component that sees them; they are pushed back to the queue's redelivery
// mechanism so that retry policy lives in exactly one place.
package surgeerrors

import (
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ErrInvalidRequest indicates a launch request that failed validation.
// It is returned before any worker is started and has no side effects.
type ErrInvalidRequest struct {
	Message string
}

func (err *ErrInvalidRequest) Error() string {
	return fmt.Sprintf("invalid launch request: %s", err.Message)
}

// ErrPartialLaunchFailure is returned when some, but not all, workers of a
// run could be started. Already-started workers keep running; callers may
// re-invoke launch for just the failed indices.
type ErrPartialLaunchFailure struct {
	RunId         string
	FailedIndices []int
	Reasons       *multierror.Error
}

func (err *ErrPartialLaunchFailure) Error() string {
	s := fmt.Sprintf("run %s: failed to start workers at indices %v", err.RunId, err.FailedIndices)
	if err.Reasons != nil {
		s = s + fmt.Sprintf(": %s", err.Reasons.Error())
	}
	return s
}

// ErrPublishUnavailable indicates the queue could not accept a publish.
// Workers may retry a bounded number of times and then drop the record;
// a dropped record is permanently lost, which is an accepted trade-off.
type ErrPublishUnavailable struct {
	Queue string
	Cause error
}

func (err *ErrPublishUnavailable) Error() string {
	return fmt.Sprintf("queue %q unavailable for publish: %s", err.Queue, err.Cause)
}

func (err *ErrPublishUnavailable) Unwrap() error {
	return err.Cause
}

// ErrMaxRetriesExceeded indicates an operation was abandoned after its retry
// budget was spent.
type ErrMaxRetriesExceeded struct {
	Message   string
	LastError error
}

func (err *ErrMaxRetriesExceeded) Error() string {
	return fmt.Sprintf("%s: %s", err.Message, err.LastError)
}

// IsNetworkError returns true if err is a transient network-level error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return false
}

// IsRetryableRedisError identifies redis server responses that indicate a
// transient condition. Largely taken from the retryable set used by go-redis.
func IsRetryableRedisError(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		s := err.Error()
		if s == "ERR max number of clients reached" {
			return true
		}
		for _, prefix := range []string{"LOADING ", "READONLY ", "CLUSTERDOWN ", "TRYAGAIN "} {
			if strings.HasPrefix(s, prefix) {
				return true
			}
		}
	}
	return false
}
