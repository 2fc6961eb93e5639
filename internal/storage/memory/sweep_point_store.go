package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/storage"
)

// SweepPointStore is an in-memory implementation of storage.SweepPointStore.
type SweepPointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SweepPointRecord // keyed by "sweep_id|index"
}

// NewSweepPointStore creates a new in-memory sweep point store.
func NewSweepPointStore() *SweepPointStore {
	return &SweepPointStore{
		data: make(map[string]*domain.SweepPointRecord),
	}
}

func sweepPointKey(sweepID string, index int) string {
	return fmt.Sprintf("%s|%d", sweepID, index)
}

// InsertBulk adds multiple points atomically. Fails entire batch on any duplicate.
func (s *SweepPointStore) InsertBulk(_ context.Context, points []*domain.SweepPointRecord) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range points {
		if p == nil || p.SweepID == "" {
			return storage.ErrInvalidInput
		}
		key := sweepPointKey(p.SweepID, p.Point.Index)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		copy := *p
		s.data[sweepPointKey(p.SweepID, p.Point.Index)] = &copy
	}

	return nil
}

// GetBySweepID retrieves all points of a sweep, ordered by alpha ASC.
func (s *SweepPointStore) GetBySweepID(_ context.Context, sweepID string) ([]*domain.SweepPointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.SweepPointRecord{}
	for _, p := range s.data {
		if p.SweepID == sweepID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Point.Alpha != result[j].Point.Alpha {
			return result[i].Point.Alpha < result[j].Point.Alpha
		}
		return result[i].Point.Index < result[j].Point.Index
	})

	return result, nil
}

// GetOptimal retrieves the point with the highest undefended efficiency.
// Ties resolve to the lowest alpha. Returns ErrNotFound if the sweep has no points.
func (s *SweepPointStore) GetOptimal(ctx context.Context, sweepID string) (*domain.SweepPointRecord, error) {
	points, err := s.GetBySweepID(ctx, sweepID)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}

	best := points[0]
	for _, p := range points[1:] {
		if p.Point.EfficiencyNoDefense > best.Point.EfficiencyNoDefense {
			best = p
		}
	}
	return best, nil
}

var _ storage.SweepPointStore = (*SweepPointStore)(nil)
