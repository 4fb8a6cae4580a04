package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: domain.KindConflict},
		{name: "foreign key", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), want: domain.KindConflict},
		{name: "check", err: &pgconn.PgError{Code: "23514"}, want: domain.KindConflict},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: domain.KindConflict},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: domain.KindConflict},
		{name: "syntax", err: &pgconn.PgError{Code: "42601"}, want: domain.KindStorage},
		{name: "plain", err: errors.New("connection reset"), want: domain.KindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.KindOf(classify("op", tt.err)); got != tt.want {
				t.Fatalf("classify kind = %q, want %q", got, tt.want)
			}
		})
	}

	if classify("op", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation")
	}
}
