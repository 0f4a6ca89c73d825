// Package routes is the screen table and its auth guard.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pitchcraft/internal/domain"
)

// Access decides who may open a screen.
type Access int

const (
	// Open screens are reachable by anyone.
	Open Access = iota
	// Protected screens require a signed-in user.
	Protected
	// PublicOnly screens are for signed-out users only.
	PublicOnly
)

func (a Access) String() string {
	switch a {
	case Protected:
		return "protected"
	case PublicOnly:
		return "public-only"
	default:
		return "open"
	}
}

// Screen names.
const (
	Dashboard = "dashboard"
	Saved     = "saved"
	Login     = "login"
	Signup    = "signup"
	Share     = "share"
)

type Route struct {
	Pattern string
	Screen  string
	Access  Access
}

var Table = []Route{
	{Pattern: "/", Screen: Dashboard, Access: Protected},
	{Pattern: "/saved", Screen: Saved, Access: Protected},
	{Pattern: "/login", Screen: Login, Access: PublicOnly},
	{Pattern: "/signup", Screen: Signup, Access: PublicOnly},
	{Pattern: "/share/{id}", Screen: Share, Access: Open},
}

// Decision is the guard's verdict for one path.
type Decision struct {
	Route Route
	// Redirect is set when the user must be sent elsewhere.
	Redirect string
	Found    bool
}

// Guard resolves paths against a route table.
type Guard struct {
	mux    *chi.Mux
	routes map[string]Route
}

func NewGuard(table []Route) *Guard {
	g := &Guard{mux: chi.NewRouter(), routes: make(map[string]Route, len(table))}
	noop := func(http.ResponseWriter, *http.Request) {}
	for _, r := range table {
		g.mux.Get(r.Pattern, noop)
		g.routes[r.Pattern] = r
	}
	return g
}

var defaultGuard = NewGuard(Table)

// Resolve applies the default table.
func Resolve(path string, user *domain.User) Decision {
	return defaultGuard.Resolve(path, user)
}

// Resolve finds the route for path. Signed-out users on a Protected screen
// are sent to /login; signed-in users on a PublicOnly screen go to /.
func (g *Guard) Resolve(path string, user *domain.User) Decision {
	pattern := g.mux.Find(chi.NewRouteContext(), http.MethodGet, path)
	r, ok := g.routes[pattern]
	if !ok {
		return Decision{}
	}
	d := Decision{Route: r, Found: true}
	switch {
	case r.Access == Protected && user == nil:
		d.Redirect = "/login"
	case r.Access == PublicOnly && user != nil:
		d.Redirect = "/"
	}
	return d
}
