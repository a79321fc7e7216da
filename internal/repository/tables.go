package repository

import (
	"database/sql"

	"cinepasse-backoffice/internal/models"
)

var ticketsTable = table[models.Ticket]{
	name: "tickets",
	columns: []string{
		"id", "purchaser_id", "movie_title", "session_date", "session_time",
		"purchase_code", "ticket_type", "reservation_type", "status", "created_at",
	},
	insertColumns: []string{
		"purchaser_id", "movie_title", "session_date", "session_time",
		"purchase_code", "ticket_type", "reservation_type", "status",
	},
	queryable: set("id", "purchaser_id", "movie_title", "purchase_code", "status", "created_at"),
	updatable: set("status"),
	scan: func(row rowScanner) (models.Ticket, error) {
		var t models.Ticket
		var sessionDate sql.NullTime
		var status string
		err := row.Scan(
			&t.ID, &t.PurchaserID, &t.MovieTitle, &sessionDate, &t.SessionTime,
			&t.PurchaseCode, &t.TicketType, &t.ReservationType, &status, &t.CreatedAt,
		)
		if sessionDate.Valid {
			d := sessionDate.Time
			t.SessionDate = &d
		}
		t.Status = models.TicketStatus(status)
		return t, err
	},
	values: func(t models.Ticket) []any {
		status := t.Status
		if status == "" {
			status = models.StatusPending
		}
		return []any{
			t.PurchaserID, t.MovieTitle, t.SessionDate, t.SessionTime,
			t.PurchaseCode, t.TicketType, t.ReservationType, string(status),
		}
	},
}

var moviesTable = table[models.Movie]{
	name: "movies",
	columns: []string{
		"id", "title", "synopsis", "poster_url", "backdrop_url", "genre",
		"duration", "content_rating", "average_rating", "created_at",
	},
	insertColumns: []string{
		"title", "synopsis", "poster_url", "backdrop_url", "genre",
		"duration", "content_rating", "average_rating",
	},
	queryable: set("id", "title", "genre", "content_rating", "created_at"),
	updatable: set(
		"title", "synopsis", "poster_url", "backdrop_url", "genre",
		"duration", "content_rating", "average_rating",
	),
	scan: func(row rowScanner) (models.Movie, error) {
		var m models.Movie
		var rating sql.NullFloat64
		err := row.Scan(
			&m.ID, &m.Title, &m.Synopsis, &m.PosterURL, &m.BackdropURL, &m.Genre,
			&m.Duration, &m.ContentRating, &rating, &m.CreatedAt,
		)
		if rating.Valid {
			r := rating.Float64
			m.AverageRating = &r
		}
		return m, err
	},
	values: func(m models.Movie) []any {
		return []any{
			m.Title, m.Synopsis, m.PosterURL, m.BackdropURL, m.Genre,
			m.Duration, m.ContentRating, m.AverageRating,
		}
	},
}

var usersTable = table[models.User]{
	name:          "users",
	columns:       []string{"id", "name", "email", "cpf", "age", "plan", "is_admin", "created_at"},
	insertColumns: []string{"name", "email", "cpf", "age", "plan", "is_admin"},
	queryable:     set("id", "name", "email", "plan", "is_admin", "created_at"),
	updatable:     set("name", "age", "plan", "is_admin"),
	scan: func(row rowScanner) (models.User, error) {
		var u models.User
		var age sql.NullInt64
		var plan string
		err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CPF, &age, &plan, &u.IsAdmin, &u.CreatedAt)
		if age.Valid {
			a := int(age.Int64)
			u.Age = &a
		}
		u.Plan = models.Plan(plan)
		return u, err
	},
	values: func(u models.User) []any {
		plan := u.Plan
		if plan == "" {
			plan = models.PlanNone
		}
		return []any{u.Name, u.Email, u.CPF, u.Age, string(plan), u.IsAdmin}
	},
}
