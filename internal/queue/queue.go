// Package queue provides a durable at-least-once message buffer between load
// test workers and the result ingester, backed by redis.
//
// Every message is a small state machine: it is visible (on the pending
// list), in-flight (leased to a consumer until a visibility deadline), and
// either acknowledged (removed) or dead-lettered once its delivery counter
// exceeds the configured maximum. Redelivery is driven by a reaper that
// sweeps expired leases; consumers never coordinate with each other.
package queue

import (
	"context"
	"time"
)

// Envelope wraps one published payload together with its queue-maintained
// delivery state. Attempts counts deliveries, including the current one.
type Envelope struct {
	Id       string
	Payload  []byte
	Attempts int
}

// DeadLetter is a quarantined message. Dead letters are retained for offline
// inspection and are never redelivered automatically.
type DeadLetter struct {
	Id         string
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

type Queue interface {
	// Publish durably enqueues a payload. The message becomes visible to
	// consumers immediately.
	Publish(ctx context.Context, payload []byte) error
	// Receive returns up to maxBatch envelopes, waiting up to maxWait for at
	// least one to become available. Returned envelopes are invisible to
	// other consumers until their visibility deadline passes.
	Receive(ctx context.Context, maxBatch int, maxWait time.Duration) ([]*Envelope, error)
	// Ack permanently removes a message. Call only once the corresponding
	// record is durably persisted, never before.
	Ack(ctx context.Context, envelope *Envelope) error
}
