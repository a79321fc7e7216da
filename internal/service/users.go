package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// SearchUsers keeps users whose name or email contains q, ignoring case,
// or whose CPF contains q verbatim.
func SearchUsers(users []models.User, q string) []models.User {
	q = strings.TrimSpace(q)
	if q == "" {
		return users
	}
	lower := strings.ToLower(q)

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), lower) ||
			strings.Contains(strings.ToLower(u.Email), lower) ||
			strings.Contains(u.CPF, q) {
			out = append(out, u)
		}
	}
	return out
}

// ParseAge parses an age. Text that is not an integer yields nil.
func ParseAge(text string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return nil
	}
	return &n
}

// UserDirectory lists users, edits profiles and shows one user's tickets.
type UserDirectory struct {
	users   backend.Collection[models.User]
	tickets backend.Collection[models.Ticket]

	mu       sync.Mutex
	snapshot []models.User
	err      error
	onChange func()
	unsub    backend.Unsubscribe
	history  *History
	readyFlag
}

// NewUserDirectory creates an unmounted user management view.
func NewUserDirectory(store backend.Store) *UserDirectory {
	return &UserDirectory{
		users:     store.Users(),
		tickets:   store.Tickets(),
		readyFlag: newReadyFlag(),
	}
}

// Mount subscribes to every user.
func (v *UserDirectory) Mount(onChange func()) {
	v.mu.Lock()
	v.onChange = onChange
	v.mu.Unlock()

	unsub := v.users.Subscribe(backend.Query{}, func(users []models.User) {
		v.mu.Lock()
		v.snapshot = users
		fn := v.onChange
		v.mu.Unlock()
		v.mark()
		notify(fn)
	}, func(err error) {
		slog.Error("user subscription failed", "error", err)
		v.mu.Lock()
		v.err = err
		fn := v.onChange
		v.mu.Unlock()
		v.mark()
		notify(fn)
	})

	v.mu.Lock()
	v.unsub = unsub
	v.mu.Unlock()
}

// Unmount releases the user subscription and any open history.
func (v *UserDirectory) Unmount() {
	v.mu.Lock()
	unsub, history := v.unsub, v.history
	v.unsub, v.history, v.onChange = nil, nil, nil
	v.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if history != nil {
		history.Close()
	}
}

// Err returns the subscription failure, if any.
func (v *UserDirectory) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Search filters the current snapshot.
func (v *UserDirectory) Search(q string) []models.User {
	v.mu.Lock()
	snapshot := v.snapshot
	v.mu.Unlock()
	return SearchUsers(snapshot, q)
}

// Update writes the editable profile fields. CPF and email are left alone.
func (v *UserDirectory) Update(ctx context.Context, id string, form models.UserForm) error {
	plan := form.Plan
	if plan == "" {
		plan = models.PlanNone
	}
	if !plan.Valid() {
		return fmt.Errorf("%q: %w", form.Plan, ErrInvalidPlan)
	}

	err := v.users.Update(ctx, id, backend.Fields{
		"name":     strings.TrimSpace(form.Name),
		"age":      ParseAge(string(form.Age)),
		"plan":     string(plan),
		"is_admin": form.IsAdmin,
	})
	if err != nil {
		slog.Error("failed to update user", "user_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	slog.Info("user updated", "user_id", id, "plan", plan, "is_admin", form.IsAdmin)
	return nil
}

// Delete removes the profile record once confirmed. Login credentials are
// not touched.
func (v *UserDirectory) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := v.users.Delete(ctx, id); err != nil {
		slog.Error("failed to delete user", "user_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	slog.Info("user deleted", "user_id", id)
	return nil
}

// Select opens the ticket history of userID, closing the previous one.
func (v *UserDirectory) Select(userID string, onChange func()) *History {
	h := OpenHistory(v.tickets, userID, onChange)

	v.mu.Lock()
	prev := v.history
	v.history = h
	v.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return h
}

// CloseHistory closes the open history, if any.
func (v *UserDirectory) CloseHistory() {
	v.mu.Lock()
	h := v.history
	v.history = nil
	v.mu.Unlock()

	if h != nil {
		h.Close()
	}
}

// History follows one user's tickets, newest first. When the ordered query
// lacks its index the history falls back to the unordered query.
type History struct {
	tickets backend.Collection[models.Ticket]
	userID  string

	mu       sync.Mutex
	entries  []models.Ticket
	ordered  bool
	err      error
	closed   bool
	gen      int
	unsub    backend.Unsubscribe
	onChange func()
	switches sync.WaitGroup
	readyFlag
}

// OpenHistory subscribes to the tickets of userID.
func OpenHistory(tickets backend.Collection[models.Ticket], userID string, onChange func()) *History {
	h := &History{
		tickets:   tickets,
		userID:    userID,
		ordered:   true,
		onChange:  onChange,
		readyFlag: newReadyFlag(),
	}

	h.mu.Lock()
	gen := h.gen
	h.mu.Unlock()

	q := backend.Query{}.Where("purchaser_id", userID).Order("created_at", true)
	unsub := tickets.Subscribe(q, h.deliver(gen), func(err error) {
		if errors.Is(err, backend.ErrIndexMissing) {
			slog.Warn("history index missing, falling back to unordered query", "user_id", userID)
			h.switches.Add(1)
			go func() {
				defer h.switches.Done()
				h.fallback(gen)
			}()
			return
		}
		h.fail(gen, err)
	})
	h.install(gen, unsub)
	return h
}

// UserID returns the user whose tickets are shown.
func (h *History) UserID() string {
	return h.userID
}

// Entries returns the current tickets.
func (h *History) Entries() []models.Ticket {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries
}

// Ordered reports whether entries come from the ordered query.
func (h *History) Ordered() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ordered
}

// Err returns the subscription failure, if any.
func (h *History) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close releases whichever subscription is live. It is idempotent.
func (h *History) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.gen++
	unsub := h.unsub
	h.unsub = nil
	h.onChange = nil
	h.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	h.switches.Wait()
}

func (h *History) fallback(gen int) {
	h.mu.Lock()
	if h.closed || gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.gen++
	next := h.gen
	h.ordered = false
	prev := h.unsub
	h.unsub = nil
	h.mu.Unlock()

	if prev != nil {
		prev()
	}

	q := backend.Query{}.Where("purchaser_id", h.userID)
	unsub := h.tickets.Subscribe(q, h.deliver(next), func(err error) { h.fail(next, err) })
	h.install(next, unsub)
}

// install records unsub as the live subscription of gen, or releases it
// when the history moved on in the meantime.
func (h *History) install(gen int, unsub backend.Unsubscribe) {
	h.mu.Lock()
	if h.closed || gen != h.gen {
		h.mu.Unlock()
		unsub()
		return
	}
	h.unsub = unsub
	h.mu.Unlock()
}

func (h *History) deliver(gen int) func([]models.Ticket) {
	return func(tickets []models.Ticket) {
		h.mu.Lock()
		if h.closed || gen != h.gen {
			h.mu.Unlock()
			return
		}
		h.entries = tickets
		fn := h.onChange
		h.mu.Unlock()
		h.mark()
		notify(fn)
	}
}

func (h *History) fail(gen int, err error) {
	slog.Error("history subscription failed", "user_id", h.userID, "error", err)
	h.mu.Lock()
	if h.closed || gen != h.gen {
		h.mu.Unlock()
		return
	}
	h.err = err
	fn := h.onChange
	h.mu.Unlock()
	h.mark()
	notify(fn)
}
