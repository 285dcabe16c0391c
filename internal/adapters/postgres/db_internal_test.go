package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

func TestStatementName(t *testing.T) {
	tests := map[string]string{
		"\n\t\tselect id FROM pings": "SELECT",
		"INSERT INTO pings":          "INSERT",
		"":                           "query",
	}
	for sql, want := range tests {
		if got := statementName(sql); got != want {
			t.Errorf("statementName(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, domain.ErrDuplicate},
		{"check", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23514"}), domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapErr(tt.err, "ping p1"); !errors.Is(got, tt.want) {
				t.Errorf("mapErr = %v, want %v", got, tt.want)
			}
		})
	}

	if mapErr(nil, "x") != nil {
		t.Error("nil should stay nil")
	}
	other := errors.New("conn reset")
	if got := mapErr(other, "ping p1"); !errors.Is(got, other) || errors.Is(got, domain.ErrNotFound) {
		t.Errorf("unexpected mapping %v", got)
	}
}
