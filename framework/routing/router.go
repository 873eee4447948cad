package routing

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/km-arc/go-nix/framework/action"
	"github.com/km-arc/go-nix/framework/events"
)

var placeholder = regexp.MustCompile(`\{([^}]+)\}`)

// Route is one entry of the route table.
type Route struct {
	Name   string
	Method string
	Path   string
	Action action.Action

	pattern *regexp.Regexp
	params  []string
}

// Match is the result of a successful Find.
type Match struct {
	Route  Route
	Params Params
}

// Router is an ordered route table. The first route whose method and
// pattern match wins; registration order decides, not specificity.
//
// Routes are added during startup. Find is safe for concurrent use.
type Router struct {
	mu      sync.RWMutex
	routes  []*Route
	byName  map[string]*Route
	current string
	events  *events.Manager
}

// Option configures a Router.
type Option func(*Router)

// WithEvents makes the router dispatch route.matching, route.matched and
// route.not_found through em.
func WithEvents(em *events.Manager) Option {
	return func(r *Router) { r.events = em }
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{byName: make(map[string]*Route)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetEvents replaces the event manager.
func (r *Router) SetEvents(em *events.Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = em
}

// ── Registration ──────────────────────────────────────────────────────────────

// Add registers a route. act is a function or an action.Method. A single
// route may be unnamed; as soon as there is more than one route, all of
// them must be named.
func (r *Router) Add(method, path string, act any, name ...string) error {
	routeName := ""
	if len(name) > 0 {
		routeName = name[0]
	}

	a, err := action.From(act)
	if err != nil {
		return fmt.Errorf("routing: %s %s: %w", method, path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.routes) > 0 {
		if routeName == "" {
			return fmt.Errorf("routing: %s %s: %w", method, path, ErrUnnamedRoute)
		}
		if r.routes[0].Name == "" {
			return fmt.Errorf("routing: %s %s: first route %s %s: %w",
				method, path, r.routes[0].Method, r.routes[0].Path, ErrUnnamedRoute)
		}
	}
	if _, taken := r.byName[routeName]; taken && routeName != "" {
		return fmt.Errorf("routing: '%s': %w", routeName, ErrDuplicateRoute)
	}

	route := compile(&Route{
		Name:   routeName,
		Method: strings.ToUpper(method),
		Path:   path,
		Action: a,
	})
	r.routes = append(r.routes, route)
	if routeName != "" {
		r.byName[routeName] = route
	}
	return nil
}

// MustAdd is like Add but panics, so a malformed route table fails at boot.
func (r *Router) MustAdd(method, path string, act any, name ...string) *Router {
	if err := r.Add(method, path, act, name...); err != nil {
		panic(err)
	}
	return r
}

func (r *Router) Get(path string, act any, name ...string) *Router {
	return r.MustAdd("GET", path, act, name...)
}

func (r *Router) Post(path string, act any, name ...string) *Router {
	return r.MustAdd("POST", path, act, name...)
}

func (r *Router) Put(path string, act any, name ...string) *Router {
	return r.MustAdd("PUT", path, act, name...)
}

func (r *Router) Patch(path string, act any, name ...string) *Router {
	return r.MustAdd("PATCH", path, act, name...)
}

func (r *Router) Delete(path string, act any, name ...string) *Router {
	return r.MustAdd("DELETE", path, act, name...)
}

// Any registers act for every common method. Each route is named
// name.<method>, e.g. "ping.get".
func (r *Router) Any(path string, act any, name string) *Router {
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"} {
		r.MustAdd(m, path, act, name+"."+strings.ToLower(m))
	}
	return r
}

// Resource registers the RESTful routes of a controller type, named
// name.index, name.store, name.show, name.update and name.destroy.
//
//	GET    /photos       → Index
//	POST   /photos       → Store
//	GET    /photos/{id}  → Show
//	PUT    /photos/{id}  → Update
//	DELETE /photos/{id}  → Destroy
func (r *Router) Resource(path string, controller any, name string) *Router {
	item := strings.TrimSuffix(path, "/") + "/{id}"
	return r.
		Get(path, action.Bound(controller, "Index"), name+".index").
		Post(path, action.Bound(controller, "Store"), name+".store").
		Get(item, action.Bound(controller, "Show"), name+".show").
		Put(item, action.Bound(controller, "Update"), name+".update").
		Delete(item, action.Bound(controller, "Destroy"), name+".destroy")
}

// compile turns the {placeholder} path into an anchored regular expression
// with one single-segment capture per placeholder.
func compile(route *Route) *Route {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholder.FindAllStringSubmatchIndex(route.Path, -1) {
		b.WriteString(regexp.QuoteMeta(route.Path[last:loc[0]]))
		b.WriteString("([^/]+)")
		route.params = append(route.params, route.Path[loc[2]:loc[3]])
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(route.Path[last:]))
	b.WriteString("$")
	route.pattern = regexp.MustCompile(b.String())
	return route
}

// ── Lookup ────────────────────────────────────────────────────────────────────

// Find returns the first route matching method (case-insensitive) and path.
// It fails with a *NotFoundError matching ErrRouteNotFound.
func (r *Router) Find(path, method string) (*Match, error) {
	r.mu.RLock()
	em := r.events
	routes := r.routes
	r.mu.RUnlock()

	if _, err := em.Dispatch(events.RouteMatching, path, method); err != nil {
		return nil, err
	}

	upper := strings.ToUpper(method)
	for _, route := range routes {
		if route.Method != upper {
			continue
		}
		m := route.pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}

		r.mu.Lock()
		r.current = route.Name
		r.mu.Unlock()

		if _, err := em.Dispatch(events.RouteMatched, *route); err != nil {
			return nil, err
		}
		return &Match{Route: *route, Params: Params{names: route.params, values: m[1:]}}, nil
	}

	if _, err := em.Dispatch(events.RouteNotFound, path, method); err != nil {
		return nil, err
	}
	return nil, &NotFoundError{Method: upper, Path: path}
}

// URL builds the path of the named route, substituting {key} placeholders.
func (r *Router) URL(name string, params map[string]any) (string, error) {
	r.mu.RLock()
	route, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok || name == "" {
		return "", &NotFoundError{Name: name}
	}

	url := route.Path
	for key, value := range params {
		url = strings.ReplaceAll(url, "{"+key+"}", fmt.Sprint(value))
	}
	return url, nil
}

// All returns the routes in registration order.
func (r *Router) All() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Route, len(r.routes))
	for i, route := range r.routes {
		out[i] = *route
	}
	return out
}

// Current returns the name of the most recently matched route.
func (r *Router) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Active returns class when the current route is one of names, else "".
//
//	<li class="{{ active "nav-active" "home" "about" }}">
func (r *Router) Active(class string, names ...string) string {
	current := r.Current()
	if current == "" {
		return ""
	}
	for _, name := range names {
		if name == current {
			return class
		}
	}
	return ""
}
