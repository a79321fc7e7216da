package service

import (
	"context"
	"fmt"
	"sync"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// GateState is what the backoffice shows for a client session.
type GateState string

const (
	GateLoading GateState = "loading"
	GateLogin   GateState = "login"
	GateMain    GateState = "main"
)

// GateStatus is the rendered session gate.
type GateStatus struct {
	State     GateState         `json:"state"`
	Principal *models.Principal `json:"principal,omitempty"`
	Layout    *Shell            `json:"layout,omitempty"`
}

// Gate follows the authentication state behind one session token.
type Gate struct {
	auth backend.Auth

	mu        sync.Mutex
	principal *models.Principal
	loading   bool
	view      string
	onChange  func(GateStatus)
	unsub     backend.Unsubscribe
	readyFlag
}

// NewGate creates an unmounted gate.
func NewGate(auth backend.Auth) *Gate {
	return &Gate{auth: auth, loading: true, view: ViewDashboard, readyFlag: newReadyFlag()}
}

// Mount registers with Auth for token. onChange may be nil.
func (g *Gate) Mount(token string, onChange func(GateStatus)) {
	g.mu.Lock()
	g.onChange = onChange
	g.mu.Unlock()

	unsub := g.auth.Subscribe(token, func(p *models.Principal) {
		g.mu.Lock()
		g.principal = p
		g.loading = false
		fn := g.onChange
		status := g.statusLocked()
		g.mu.Unlock()

		g.mark()
		if fn != nil {
			fn(status)
		}
	})

	g.mu.Lock()
	g.unsub = unsub
	g.mu.Unlock()
}

// Unmount releases the auth subscription.
func (g *Gate) Unmount() {
	g.mu.Lock()
	unsub := g.unsub
	g.unsub = nil
	g.onChange = nil
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Select chooses the view shown by the layout.
func (g *Gate) Select(view string) {
	g.mu.Lock()
	g.view = view
	g.mu.Unlock()
}

// Status returns the current state.
func (g *Gate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

// Logout ends the session and clears the local principal.
func (g *Gate) Logout(ctx context.Context, token string) error {
	if err := g.auth.SignOut(ctx, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	g.mu.Lock()
	g.principal = nil
	g.loading = false
	g.mu.Unlock()
	g.mark()
	return nil
}

func (g *Gate) statusLocked() GateStatus {
	switch {
	case g.loading:
		return GateStatus{State: GateLoading}
	case g.principal == nil:
		return GateStatus{State: GateLogin}
	}
	p := *g.principal
	shell := Layout(g.view)
	return GateStatus{State: GateMain, Principal: &p, Layout: &shell}
}
