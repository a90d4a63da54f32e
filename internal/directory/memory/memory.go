package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"corpgate/internal/directory"
	"corpgate/internal/domain"
)

// Store is an in-memory employee directory.
type Store struct {
	mu      sync.RWMutex
	records map[domain.EmployeeID]domain.EmployeeRecord
}

func NewStore(recs ...domain.EmployeeRecord) *Store {
	s := &Store{records: make(map[domain.EmployeeID]domain.EmployeeRecord, len(recs))}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

// LoadFile reads a JSON array of employee records. A missing file yields an
// empty store.
func LoadFile(path string) (*Store, error) {
	recs, err := ReadRecords(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, err
	}
	return NewStore(recs...), nil
}

// ReadRecords decodes a JSON array of employee records from path.
func ReadRecords(path string) ([]domain.EmployeeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var recs []domain.EmployeeRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return recs, nil
}

func (s *Store) Lookup(_ context.Context, id domain.EmployeeID) (domain.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.EmployeeRecord{}, fmt.Errorf("%w: %s", directory.ErrNotFound, id)
	}
	return rec, nil
}

func (s *Store) Put(_ context.Context, rec domain.EmployeeRecord) error {
	if rec.ID == "" {
		return errors.New("employee record without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
