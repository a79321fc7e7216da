package service

// Views reachable from the navigation.
const (
	ViewDashboard = "dashboard"
	ViewTickets   = "tickets"
	ViewMovies    = "movies"
	ViewUsers     = "users"
)

// LogoutPath is the action bound to the logout entry.
const LogoutPath = "/api/v1/auth/logout"

// NavItem is one navigation entry.
type NavItem struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Shell is the layout around the selected view.
type Shell struct {
	Current string    `json:"current"`
	Nav     []NavItem `json:"nav"`
	Logout  string    `json:"logout"`
}

var navigation = []NavItem{
	{ID: ViewDashboard, Label: "Dashboard"},
	{ID: ViewTickets, Label: "Validar Tickets"},
	{ID: ViewMovies, Label: "Catálogo de Filmes"},
	{ID: ViewUsers, Label: "Usuários"},
}

// Layout returns the navigation with view marked active. Unknown views
// fall back to the dashboard.
func Layout(view string) Shell {
	if !knownView(view) {
		view = ViewDashboard
	}
	nav := make([]NavItem, len(navigation))
	for i, item := range navigation {
		item.Active = item.ID == view
		nav[i] = item
	}
	return Shell{Current: view, Nav: nav, Logout: LogoutPath}
}

func knownView(view string) bool {
	for _, item := range navigation {
		if item.ID == view {
			return true
		}
	}
	return false
}
