package store

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/surgeworks/surge/internal/resultingester/metrics"
	"github.com/surgeworks/surge/internal/resultingester/model"
)

const resultsTable = "load_test_results"

var psql = goqu.Dialect("postgres")

// ResultStore persists result rows and serves keyed reads for reporting
// tools. Put must be idempotent: the queue delivers at least once, so the
// same row may be written more than once.
type ResultStore interface {
	// Put upserts rows. Re-inserting an identical row is a no-op in effect;
	// a genuinely different row under the same key wins last-write.
	Put(ctx context.Context, rows []*model.ResultRow) error
	// Query returns all unexpired rows for a test id, ordered by timestamp
	// ascending.
	Query(ctx context.Context, testId string) ([]*model.ResultRow, error)
}

// PostgresResultStore stores rows in postgres, keyed by
// (test_id, ts, worker_index). The key is widened with worker_index because
// two workers of the same run can emit records in the same millisecond.
type PostgresResultStore struct {
	db *pgxpool.Pool
}

func NewPostgresResultStore(db *pgxpool.Pool) *PostgresResultStore {
	return &PostgresResultStore{db: db}
}

// InitialiseSchema creates the results table if it does not exist.
func (s *PostgresResultStore) InitialiseSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return errors.Wrap(err, "could not initialise result store schema")
}

func (s *PostgresResultStore) Put(ctx context.Context, rows []*model.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	records := make([]interface{}, len(rows))
	for i, row := range rows {
		records[i] = row
	}
	sql, args, err := psql.Insert(resultsTable).
		Rows(records...).
		OnConflict(goqu.DoUpdate("test_id, ts, worker_index", goqu.Record{
			"status":           goqu.I("excluded.status"),
			"response_time_ms": goqu.I("excluded.response_time_ms"),
			"expires_at":       goqu.I("excluded.expires_at"),
		})).
		Prepared(true).
		ToSQL()
	if err != nil {
		return errors.Wrap(err, "could not build insert statement")
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		metrics.Get().RecordDBError(metrics.DBOperationInsert)
		return errors.Wrap(err, "could not insert result rows")
	}
	metrics.Get().RecordRowsInserted(len(rows))
	return nil
}

func (s *PostgresResultStore) Query(ctx context.Context, testId string) ([]*model.ResultRow, error) {
	sql, args, err := psql.From(resultsTable).
		Select("test_id", "ts", "worker_index", "status", "response_time_ms", "expires_at").
		Where(
			goqu.C("test_id").Eq(testId),
			goqu.C("expires_at").Gt(time.Now()),
		).
		Order(goqu.C("ts").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "could not build query")
	}
	dbRows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		metrics.Get().RecordDBError(metrics.DBOperationRead)
		return nil, errors.Wrapf(err, "could not query results for test %s", testId)
	}
	defer dbRows.Close()

	var rows []*model.ResultRow
	for dbRows.Next() {
		row := &model.ResultRow{}
		if err := dbRows.Scan(&row.TestId, &row.Timestamp, &row.WorkerIndex, &row.Status, &row.ResponseTimeMs, &row.ExpiresAt); err != nil {
			return nil, errors.Wrap(err, "could not scan result row")
		}
		rows = append(rows, row)
	}
	return rows, dbRows.Err()
}

// DeleteExpired physically removes rows past their expiry. Queries already
// filter these out, so reclamation is allowed to lag.
func (s *PostgresResultStore) DeleteExpired(ctx context.Context) (int64, error) {
	sql, args, err := psql.Delete(resultsTable).
		Where(goqu.C("expires_at").Lte(time.Now())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, errors.Wrap(err, "could not build delete statement")
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		metrics.Get().RecordDBError(metrics.DBOperationDelete)
		return 0, errors.Wrap(err, "could not delete expired result rows")
	}
	return tag.RowsAffected(), nil
}

// RunJanitor deletes expired rows on an interval until ctx is cancelled.
func (s *PostgresResultStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.DeleteExpired(ctx)
			if err != nil {
				log.WithError(err).Warn("Failed to delete expired result rows")
			} else if deleted > 0 {
				log.Infof("Deleted %d expired result rows", deleted)
			}
		}
	}
}
