package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"cinepasse-backoffice/internal/backend"
)

func TestSelectSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    backend.Query
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "all tickets newest first",
			query:   backend.Query{}.Order("created_at", true),
			wantSQL: "SELECT id, purchaser_id, movie_title, session_date, session_time, purchase_code, ticket_type, reservation_type, status, created_at FROM tickets ORDER BY created_at DESC NULLS LAST",
		},
		{
			name:     "history",
			query:    backend.Query{}.Where("purchaser_id", "u1").Order("created_at", true),
			wantSQL:  "SELECT id, purchaser_id, movie_title, session_date, session_time, purchase_code, ticket_type, reservation_type, status, created_at FROM tickets WHERE purchaser_id = $1 ORDER BY created_at DESC NULLS LAST",
			wantArgs: 1,
		},
		{
			name:     "two filters",
			query:    backend.Query{}.Where("purchaser_id", "u1").Where("status", "Pending"),
			wantSQL:  "SELECT id, purchaser_id, movie_title, session_date, session_time, purchase_code, ticket_type, reservation_type, status, created_at FROM tickets WHERE purchaser_id = $1 AND status = $2",
			wantArgs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args, err := ticketsTable.selectSQL(tt.query)
			if err != nil {
				t.Fatalf("selectSQL: %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("sql =\n%s\nwant\n%s", got, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Fatalf("args = %v, want %d", args, tt.wantArgs)
			}
		})
	}
}

func TestSelectSQLRejectsUnknownColumns(t *testing.T) {
	t.Parallel()

	queries := []backend.Query{
		backend.Query{}.Where("status; DROP TABLE tickets", "x"),
		backend.Query{}.Order("password_hash", false),
	}
	for _, q := range queries {
		if _, _, err := ticketsTable.selectSQL(q); !errors.Is(err, backend.ErrInvalidField) {
			t.Fatalf("selectSQL(%s) error = %v, want ErrInvalidField", q, err)
		}
	}
}

func TestUpdateSQL(t *testing.T) {
	t.Parallel()

	age := 30
	query, args, err := usersTable.updateSQL("u1", backend.Fields{
		"plan":     "premium",
		"name":     "Ana",
		"age":      &age,
		"is_admin": false,
	})
	if err != nil {
		t.Fatalf("updateSQL: %v", err)
	}
	want := "UPDATE users SET age = $1, is_admin = $2, name = $3, plan = $4 WHERE id = $5"
	if query != want {
		t.Fatalf("sql = %q, want %q", query, want)
	}
	if len(args) != 5 || args[4] != "u1" {
		t.Fatalf("args = %v", args)
	}

	for _, field := range []string{"cpf", "email", "id", "created_at"} {
		if _, _, err := usersTable.updateSQL("u1", backend.Fields{field: "x"}); !errors.Is(err, backend.ErrInvalidField) {
			t.Fatalf("update of %s error = %v, want ErrInvalidField", field, err)
		}
	}

	if _, _, err := ticketsTable.updateSQL("t1", backend.Fields{"movie_title": "x"}); !errors.Is(err, backend.ErrInvalidField) {
		t.Fatalf("tickets accept only status updates, got %v", err)
	}
	if _, _, err := moviesTable.updateSQL("m1", backend.Fields{}); err == nil {
		t.Fatalf("empty update accepted")
	}
}

func TestUpdateIfSQL(t *testing.T) {
	t.Parallel()

	pending := backend.Query{}.Where("status", "Pending")
	query, args, err := ticketsTable.updateIfSQL("t1", pending, backend.Fields{"status": "Approved"})
	if err != nil {
		t.Fatalf("updateIfSQL: %v", err)
	}
	want := "UPDATE tickets SET status = $1 WHERE id = $2 AND status = $3"
	if query != want {
		t.Fatalf("sql = %q, want %q", query, want)
	}
	if len(args) != 3 || args[0] != "Approved" || args[1] != "t1" || args[2] != "Pending" {
		t.Fatalf("args = %v", args)
	}

	bad := backend.Query{}.Where("1 = 1 OR status", "x")
	if _, _, err := ticketsTable.updateIfSQL("t1", bad, backend.Fields{"status": "Approved"}); !errors.Is(err, backend.ErrInvalidField) {
		t.Fatalf("unknown condition column error = %v, want ErrInvalidField", err)
	}
}

func TestIndexServes(t *testing.T) {
	t.Parallel()

	const history = "purchaser_id, created_at"
	tests := []struct {
		def  string
		want bool
	}{
		{"CREATE INDEX idx_tickets_purchaser_created ON public.tickets USING btree (purchaser_id, created_at)", true},
		{"CREATE INDEX idx ON public.tickets USING btree (purchaser_id, created_at DESC)", true},
		{"CREATE INDEX idx ON public.tickets USING btree (purchaser_id, created_at, status)", true},
		{"CREATE INDEX idx ON public.tickets USING btree (purchaser_id, created_at_day)", false},
		{"CREATE INDEX idx ON public.tickets USING btree (created_at, purchaser_id)", false},
		{"CREATE INDEX idx_tickets_created_at ON public.tickets USING btree (created_at)", false},
		{"CREATE UNIQUE INDEX tickets_pkey ON public.tickets USING btree (id)", false},
	}

	for _, tt := range tests {
		if got := indexServes(tt.def, history); got != tt.want {
			t.Fatalf("indexServes(%q) = %v, want %v", tt.def, got, tt.want)
		}
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	denied := fmt.Errorf("exec: %w", &pq.Error{Code: "42501", Message: "permission denied for table tickets"})
	if err := mapError(denied); !errors.Is(err, backend.ErrPermissionDenied) {
		t.Fatalf("mapError(42501) = %v, want ErrPermissionDenied", err)
	}

	unique := &pq.Error{Code: "23505", Message: "duplicate key value"}
	if err := mapError(unique); errors.Is(err, backend.ErrPermissionDenied) || err != error(unique) {
		t.Fatalf("mapError(23505) = %v, want the error unchanged", err)
	}

	plain := errors.New("connection refused")
	if err := mapError(plain); err != plain {
		t.Fatalf("mapError(plain) = %v", err)
	}
}
