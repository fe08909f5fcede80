package pgdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/DRSN-tech/catalog-backend/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapError(t *testing.T) {
	other := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, e.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), e.ErrNotFound},
		{"lock not available", &pgconn.PgError{Code: pgLockNotAvailable}, e.ErrConflict},
		{"serialization", &pgconn.PgError{Code: pgSerializationFailure}, e.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: pgDeadlockDetected}, e.ErrConflict},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("MapError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if MapError(nil) != nil {
		t.Error("nil must stay nil")
	}
	if !postgresDuplicate(fmt.Errorf("x: %w", &pgconn.PgError{Code: pgUniqueViolation})) {
		t.Error("wrapped unique violation must be detected")
	}
}
