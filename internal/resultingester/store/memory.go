package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/surgeworks/surge/internal/resultingester/model"
)

type rowKey struct {
	timestamp   int64
	workerIndex int
}

// InMemoryResultStore is a ResultStore for tests and local development. It
// applies the same key and expiry semantics as the postgres store.
type InMemoryResultStore struct {
	mu      sync.Mutex
	rows    map[string]map[rowKey]*model.ResultRow
	failPut error
}

func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{
		rows: make(map[string]map[rowKey]*model.ResultRow),
	}
}

// FailPutsWith makes every subsequent Put return err; pass nil to heal.
func (s *InMemoryResultStore) FailPutsWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPut = err
}

func (s *InMemoryResultStore) Put(_ context.Context, rows []*model.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		return s.failPut
	}
	for _, row := range rows {
		byKey, ok := s.rows[row.TestId]
		if !ok {
			byKey = make(map[rowKey]*model.ResultRow)
			s.rows[row.TestId] = byKey
		}
		copied := *row
		byKey[rowKey{timestamp: row.Timestamp, workerIndex: row.WorkerIndex}] = &copied
	}
	return nil
}

func (s *InMemoryResultStore) Query(_ context.Context, testId string) ([]*model.ResultRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var results []*model.ResultRow
	for _, row := range s.rows[testId] {
		if row.ExpiresAt.After(now) {
			copied := *row
			results = append(results, &copied)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp < results[j].Timestamp
	})
	return results, nil
}
