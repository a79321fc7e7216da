package backend_test

import (
	"testing"
	"time"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

func TestQueryMatches(t *testing.T) {
	t.Parallel()

	ticket := models.Ticket{ID: "t1", PurchaserID: "u1", Status: models.StatusPending}

	tests := []struct {
		name  string
		query backend.Query
		want  bool
	}{
		{"no filters", backend.Query{}, true},
		{"matching purchaser", backend.Query{}.Where("purchaser_id", "u1"), true},
		{"other purchaser", backend.Query{}.Where("purchaser_id", "u2"), false},
		{"named string type", backend.Query{}.Where("status", models.StatusPending), true},
		{"all filters must hold", backend.Query{}.Where("purchaser_id", "u1").Where("status", "Approved"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(ticket); got != tt.want {
				t.Fatalf("Matches(%s) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestQueryWhereDoesNotAlias(t *testing.T) {
	t.Parallel()

	base := backend.Query{}.Where("purchaser_id", "u1")
	a := base.Where("status", "Pending")
	b := base.Where("status", "Approved")

	if len(base.Filters) != 1 {
		t.Fatalf("base filters = %d, want 1", len(base.Filters))
	}
	if a.Filters[1].Value != "Pending" || b.Filters[1].Value != "Approved" {
		t.Fatalf("derived queries share filters: %v / %v", a, b)
	}
}

func TestNeedsIndexAndServes(t *testing.T) {
	t.Parallel()

	history := backend.Query{}.Where("purchaser_id", "u1").Order("created_at", true)
	if !history.NeedsIndex() {
		t.Fatalf("filtered ordered query should need an index")
	}
	if (backend.Query{}).Order("created_at", true).NeedsIndex() {
		t.Fatalf("ordering alone should not need an index")
	}
	if (backend.Query{}).Where("purchaser_id", "u1").NeedsIndex() {
		t.Fatalf("filter alone should not need an index")
	}

	ix := backend.Index{Collection: backend.CollectionTickets, Field: "purchaser_id", OrderBy: "created_at"}
	if !ix.Serves(backend.CollectionTickets, history) {
		t.Fatalf("index should serve %s", history)
	}
	if ix.Serves(backend.CollectionUsers, history) {
		t.Fatalf("index should not serve another collection")
	}
	if ix.Serves(backend.CollectionTickets, backend.Query{}.Where("status", "Pending").Order("created_at", true)) {
		t.Fatalf("index should not serve another filter field")
	}
}

func TestSortRecords(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tickets := []models.Ticket{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", CreatedAt: base.Add(time.Hour)},
	}

	backend.SortRecords(tickets, backend.Query{}.Order("created_at", true))
	got := []string{tickets[0].ID, tickets[1].ID, tickets[2].ID}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("desc order = %v, want %v", got, want)
		}
	}

	movies := []models.Movie{{Title: "Zorro"}, {Title: "Amélie"}, {Title: "Matrix"}}
	backend.SortRecords(movies, backend.Query{}.Order("title", false))
	if movies[0].Title != "Amélie" || movies[2].Title != "Zorro" {
		t.Fatalf("title order = %v", movies)
	}
}
