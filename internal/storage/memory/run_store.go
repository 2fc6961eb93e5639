package memory

import (
	"context"
	"sort"
	"sync"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.RunID] = &copy
	return nil
}

// InsertBulk adds multiple runs atomically. Fails entire batch on any duplicate.
func (s *RunStore) InsertBulk(_ context.Context, runs []*domain.RunRecord) error {
	if len(runs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(runs))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range runs {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.RunID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.RunID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.RunID] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range runs {
		copy := *r
		s.data[r.RunID] = &copy
	}

	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByKind retrieves all runs of a kind, ordered by created_at ASC, run_id ASC.
func (s *RunStore) GetByKind(_ context.Context, kind domain.RunKind) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunRecord
	for _, r := range s.data {
		if r.Kind == kind {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortRuns(result)
	return result, nil
}

// GetAll retrieves all runs, ordered by created_at ASC, run_id ASC.
func (s *RunStore) GetAll(_ context.Context) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunRecord, 0, len(s.data))
	for _, r := range s.data {
		copy := *r
		result = append(result, &copy)
	}

	sortRuns(result)
	return result, nil
}

func sortRuns(runs []*domain.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt < runs[j].CreatedAt
		}
		return runs[i].RunID < runs[j].RunID
	})
}

var _ storage.RunStore = (*RunStore)(nil)
