// Package directory defines the employee directory the gate reads records from.
package directory

import (
	"context"
	"errors"

	"corpgate/internal/domain"
)

// ErrNotFound is returned when no record exists for an employee ID.
var ErrNotFound = errors.New("employee not found")

// Store is a writable employee directory.
type Store interface {
	domain.EmployeeDirectory
	Put(ctx context.Context, rec domain.EmployeeRecord) error
}

// Import writes every record to s, stopping at the first failure.
func Import(ctx context.Context, s Store, recs []domain.EmployeeRecord) (int, error) {
	for i, rec := range recs {
		if rec.ID == "" {
			return i, errors.New("employee record without id")
		}
		if err := s.Put(ctx, rec); err != nil {
			return i, err
		}
	}
	return len(recs), nil
}
