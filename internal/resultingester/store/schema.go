package store

// Rows are keyed by (test_id, ts, worker_index). worker_index is part of the
// key so that records emitted by different workers of one run in the same
// millisecond are preserved as separate rows; true duplicates from queue
// redelivery collapse via the upsert in Put.
const schema = `
CREATE TABLE IF NOT EXISTS load_test_results (
	test_id          text NOT NULL,
	ts               bigint NOT NULL,
	worker_index     int NOT NULL,
	status           text NOT NULL,
	response_time_ms double precision NOT NULL,
	expires_at       timestamptz NOT NULL,
	PRIMARY KEY (test_id, ts, worker_index)
);

CREATE INDEX IF NOT EXISTS idx_load_test_results_expires_at ON load_test_results (expires_at);
`
