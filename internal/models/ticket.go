package models

import "time"

// TicketStatus is the approval state of a purchase request.
type TicketStatus string

const (
	StatusPending  TicketStatus = "Pending"
	StatusApproved TicketStatus = "Approved"
	StatusRejected TicketStatus = "Rejected"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is offered from s.
func (s TicketStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Ticket is a purchase request created by the customer app.
type Ticket struct {
	ID              string       `json:"id"`
	PurchaserID     string       `json:"purchaser_id"`
	MovieTitle      string       `json:"movie_title"`
	SessionDate     *time.Time   `json:"session_date"`
	SessionTime     string       `json:"session_time"`
	PurchaseCode    string       `json:"purchase_code"`
	TicketType      string       `json:"ticket_type"`
	ReservationType string       `json:"reservation_type"`
	Status          TicketStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Field returns the value of a queryable field by name.
func (t Ticket) Field(name string) any {
	switch name {
	case "id":
		return t.ID
	case "purchaser_id":
		return t.PurchaserID
	case "movie_title":
		return t.MovieTitle
	case "purchase_code":
		return t.PurchaseCode
	case "status":
		return string(t.Status)
	case "created_at":
		return t.CreatedAt
	}
	return nil
}

// Kind returns the ticket type, falling back to the reservation type.
func (t Ticket) Kind() string {
	if t.TicketType != "" {
		return t.TicketType
	}
	if t.ReservationType != "" {
		return t.ReservationType
	}
	return "Reserva Normal"
}
