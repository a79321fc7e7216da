package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// PurchaserPlaceholder is shown until a purchaser name resolves.
const PurchaserPlaceholder = "Carregando..."

// Row actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// TicketFilter narrows the ticket list locally. An empty or "all" status
// keeps every status. Status matches ignoring case.
type TicketFilter struct {
	Query  string
	Status string
}

// TicketRow is one rendered ticket.
type TicketRow struct {
	models.Ticket
	Kind          string   `json:"kind"`
	PurchaserName string   `json:"purchaser_name"`
	NameResolved  bool     `json:"name_resolved"`
	Actions       []string `json:"actions"`
}

// TicketBoard is the rendered ticket list.
type TicketBoard struct {
	Rows  []TicketRow `json:"rows"`
	Total int         `json:"total"`
	Empty bool        `json:"empty"`
}

// FilterTickets applies f to tickets, keeping their order.
func FilterTickets(tickets []models.Ticket, f TicketFilter) []models.Ticket {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	status := f.Status
	if strings.EqualFold(status, "all") {
		status = ""
	}

	out := make([]models.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if status != "" && !strings.EqualFold(string(t.Status), status) {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(t.MovieTitle), q) &&
			!strings.Contains(strings.ToLower(t.PurchaserID), q) &&
			!strings.Contains(strings.ToLower(t.PurchaseCode), q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TicketReview lists tickets newest first and approves or rejects pending ones.
type TicketReview struct {
	tickets backend.Collection[models.Ticket]
	names   *NameResolver

	mu       sync.Mutex
	snapshot []models.Ticket
	err      error
	onChange func()
	unsub    backend.Unsubscribe
	readyFlag
}

// NewTicketReview creates an unmounted ticket review view.
func NewTicketReview(store backend.Store) *TicketReview {
	v := &TicketReview{
		tickets:   store.Tickets(),
		readyFlag: newReadyFlag(),
	}
	v.names = NewNameResolver(store.Users(), v.changed)
	return v
}

// Mount subscribes to tickets ordered by creation time, newest first.
func (v *TicketReview) Mount(onChange func()) {
	v.mu.Lock()
	v.onChange = onChange
	v.mu.Unlock()

	q := backend.Query{}.Order("created_at", true)
	unsub := v.tickets.Subscribe(q, v.onSnapshot, func(err error) {
		slog.Error("ticket subscription failed", "error", err)
		v.mu.Lock()
		v.err = err
		v.mu.Unlock()
		v.mark()
		v.changed()
	})

	v.mu.Lock()
	v.unsub = unsub
	v.mu.Unlock()
}

// Unmount releases the subscription and drops pending name lookups.
func (v *TicketReview) Unmount() {
	v.mu.Lock()
	unsub := v.unsub
	v.unsub = nil
	v.onChange = nil
	v.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	v.names.Close()
}

// SettleNames waits for the purchaser lookups currently in flight.
func (v *TicketReview) SettleNames(ctx context.Context) error {
	return v.names.Wait(ctx)
}

// Err returns the subscription failure, if any.
func (v *TicketReview) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Board renders the current snapshot through f.
func (v *TicketReview) Board(f TicketFilter) TicketBoard {
	v.mu.Lock()
	snapshot := v.snapshot
	v.mu.Unlock()

	filtered := FilterTickets(snapshot, f)
	rows := make([]TicketRow, 0, len(filtered))
	for _, t := range filtered {
		row := TicketRow{Ticket: t, Kind: t.Kind(), PurchaserName: PurchaserPlaceholder, Actions: []string{}}
		if name, ok := v.names.Name(t.PurchaserID); ok {
			row.PurchaserName = name
			row.NameResolved = true
		}
		if t.Status == models.StatusPending {
			row.Actions = []string{ActionApprove, ActionReject}
		}
		rows = append(rows, row)
	}
	return TicketBoard{Rows: rows, Total: len(snapshot), Empty: len(rows) == 0}
}

// Approve moves a pending ticket to Approved.
func (v *TicketReview) Approve(ctx context.Context, id string, confirmed bool) error {
	return v.transition(ctx, id, models.StatusApproved, confirmed)
}

// Reject moves a pending ticket to Rejected.
func (v *TicketReview) Reject(ctx context.Context, id string, confirmed bool) error {
	return v.transition(ctx, id, models.StatusRejected, confirmed)
}

func (v *TicketReview) transition(ctx context.Context, id string, status models.TicketStatus, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}

	current, ok := v.find(id)
	if !ok {
		return fmt.Errorf("ticket %s: %w", id, backend.ErrNotFound)
	}
	if current.Status.Terminal() {
		return fmt.Errorf("ticket %s is %s: %w", id, current.Status, ErrTerminalStatus)
	}

	pending := backend.Query{}.Where("status", string(models.StatusPending))
	err := v.tickets.UpdateIf(ctx, id, pending, backend.Fields{"status": string(status)})
	if errors.Is(err, backend.ErrPreconditionFailed) {
		slog.Warn("ticket processed concurrently", "ticket_id", id, "status", status)
		return fmt.Errorf("ticket %s: %w", id, ErrTerminalStatus)
	}
	if err != nil {
		slog.Error("failed to update ticket status", "ticket_id", id, "status", status, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	slog.Info("ticket status updated", "ticket_id", id, "status", status)
	return nil
}

func (v *TicketReview) find(id string) (models.Ticket, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range v.snapshot {
		if t.ID == id {
			return t, true
		}
	}
	return models.Ticket{}, false
}

func (v *TicketReview) onSnapshot(tickets []models.Ticket) {
	v.mu.Lock()
	v.snapshot = tickets
	v.mu.Unlock()

	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.PurchaserID)
	}
	v.names.Request(ids...)

	v.mark()
	v.changed()
}

func (v *TicketReview) changed() {
	v.mu.Lock()
	fn := v.onChange
	v.mu.Unlock()
	notify(fn)
}
