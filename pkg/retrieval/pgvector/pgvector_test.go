package pgvector

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

func pgError(code string) error {
	return &pgconn.PgError{Code: code, Message: "test"}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{name: "connection failure class 08", err: pgError("08006"), wantTransient: true},
		{name: "insufficient resources class 53", err: pgError("53300"), wantTransient: true},
		{name: "admin shutdown", err: pgError("57P01"), wantTransient: true},
		{name: "cannot connect now", err: pgError("57P03"), wantTransient: true},
		{name: "serialization failure", err: pgError("40001"), wantTransient: true},
		{name: "deadlock detected", err: pgError("40P01"), wantTransient: true},
		{name: "undefined table is not transient", err: pgError("42P01"), wantTransient: false},
		{name: "syntax error is not transient", err: pgError("42601"), wantTransient: false},
		{name: "unique violation is not transient", err: pgError("23505"), wantTransient: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantTransient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := classify("op", tt.err)
			if retrieval.IsTransient(got) != tt.wantTransient {
				t.Errorf("classify(%v): transient = %v, want %v", tt.err, !tt.wantTransient, tt.wantTransient)
			}
		})
	}
}

func TestIsUndefinedTable(t *testing.T) {
	t.Parallel()

	if !isUndefinedTable(pgError("42P01")) {
		t.Error("Expected 42P01 to be undefined table")
	}
	if isUndefinedTable(pgError("08006")) {
		t.Error("Expected 08006 to not be undefined table")
	}
	if isUndefinedTable(errors.New("plain")) {
		t.Error("Expected plain error to not be undefined table")
	}
}

func TestNewRequiresConnectionString(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), &Config{}); err == nil {
		t.Error("Expected error for missing connection string")
	}
}
