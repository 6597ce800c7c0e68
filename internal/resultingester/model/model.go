package model

import (
	"time"

	"github.com/surgeworks/surge/internal/queue"
)

// ResultRow is the persisted form of a result record. ExpiresAt is set at
// write time; rows past it are invisible to queries even before they are
// physically deleted.
type ResultRow struct {
	TestId         string    `db:"test_id"`
	Timestamp      int64     `db:"ts"`
	WorkerIndex    int       `db:"worker_index"`
	Status         string    `db:"status"`
	ResponseTimeMs float64   `db:"response_time_ms"`
	ExpiresAt      time.Time `db:"expires_at"`
}

// Item pairs one queue envelope with the row converted from it. The envelope
// may only be acked once the row is durably stored.
type Item struct {
	Envelope *queue.Envelope
	Row      *ResultRow
}

// ConvertedBatch holds the well-formed portion of one received batch.
// Envelopes whose payloads failed to deserialize or validate are absent; they
// stay un-acked so the queue's redelivery and dead-letter policy deals with
// them.
type ConvertedBatch struct {
	Items []*Item
}
