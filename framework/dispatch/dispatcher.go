// Package dispatch forwards a request to the handler of its route and
// checks what the handler returned.
package dispatch

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/km-arc/go-nix/framework/action"
	"github.com/km-arc/go-nix/framework/events"
	gohttp "github.com/km-arc/go-nix/framework/http"
	"github.com/km-arc/go-nix/framework/observability"
	"github.com/km-arc/go-nix/framework/routing"
)

//go:embed views/*.html
var builtin embed.FS

// Dispatcher resolves a request to its route and runs the route's action.
type Dispatcher struct {
	router   *routing.Router
	events   *events.Manager
	builder  action.Builder
	spans    observability.SpanManager
	metrics  observability.MetricsRecorder
	views    *gohttp.ViewEngine
	appName  string
	routesAt string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEvents dispatches controller.calling and controller.called through em.
func WithEvents(em *events.Manager) Option {
	return func(d *Dispatcher) { d.events = em }
}

// WithBuilder builds the receivers of Method actions, usually the
// autowiring container. Without a builder, receivers are zero values.
func WithBuilder(b action.Builder) Option {
	return func(d *Dispatcher) { d.builder = b }
}

// WithTracing wraps every handler call in a span.
func WithTracing(spans observability.SpanManager) Option {
	return func(d *Dispatcher) { d.spans = spans }
}

// WithMetrics records handler latency and failures.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithWelcome sets what the built-in welcome page shows.
func WithWelcome(appName, routesFile string) Option {
	return func(d *Dispatcher) {
		d.appName = appName
		d.routesAt = routesFile
	}
}

// New creates a Dispatcher over router.
func New(router *routing.Router, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		router:   router,
		spans:    observability.NoopSpanManager{},
		metrics:  observability.NoopMetrics{},
		views:    gohttp.NewViewEngine(gohttp.MustSub(builtin, "views"), ".html"),
		appName:  "go-nix",
		routesAt: "routes.go",
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Forward runs the action of the route matching req.
//
// A GET / without a matching route yields the welcome page; every other
// lookup failure is returned and matches routing.ErrRouteNotFound. A
// handler may return a *gohttp.Response or a Result, optionally followed
// by an error. Anything else fails with ErrNoValidResponse.
func (d *Dispatcher) Forward(ctx context.Context, req *gohttp.Request) (Result, error) {
	method, path := req.Method(), req.Path()
	if method == "" {
		method = http.MethodGet
	}

	match, err := d.router.Find(path, method)
	if err != nil {
		if errors.Is(err, routing.ErrRouteNotFound) && path == "/" && method == http.MethodGet {
			return d.welcome()
		}
		return Result{}, err
	}

	route := match.Route
	req.WithParams(match.Params.Map()).WithRoute(label(route))
	observability.AddSpanEvent(ctx, "route.matched",
		attribute.String("http.route", route.Path),
		attribute.String("route.name", route.Name),
	)

	target, err := route.Action.Target(d.builder)
	if err != nil {
		return Result{}, d.fail(route, err)
	}

	if _, err := d.events.DispatchContext(ctx, events.ControllerCalling, req, target, route.Action); err != nil {
		return Result{}, d.fail(route, err)
	}

	out, err := d.call(ctx, route, target, req, match.Params)
	if err != nil {
		return Result{}, d.fail(route, err)
	}

	if r, ok := out.(Result); ok && r.Outcome == Halted {
		return r, nil
	}

	if _, err := d.events.DispatchContext(ctx, events.ControllerCalled, req, target, route.Action, out); err != nil {
		return Result{}, d.fail(route, err)
	}

	switch v := out.(type) {
	case *gohttp.Response:
		if v != nil {
			return Respond(v), nil
		}
	case Result:
		if v.Response != nil {
			return v, nil
		}
	}
	return Result{}, d.fail(route, fmt.Errorf("%w: got %T", ErrNoValidResponse, out))
}

func (d *Dispatcher) call(ctx context.Context, route routing.Route, target any, req *gohttp.Request, params routing.Params) (out any, err error) {
	ctx, span := d.spans.StartHandlerSpan(ctx, label(route), route.Action.String())
	start := time.Now()
	defer func() {
		d.metrics.RecordHandler(ctx, label(route), time.Since(start), err)
		d.spans.EndSpanWithError(span, err)
	}()

	args := make([]any, params.Len())
	for i, v := range params.Values() {
		args[i] = v
	}
	return route.Action.Call(target, action.Input{
		Context: ctx,
		Inject:  []any{req, req.Raw(), params},
		Args:    args,
	})
}

func (d *Dispatcher) welcome() (Result, error) {
	res, err := d.views.View("welcome", map[string]any{
		"Name":       d.appName,
		"RoutesFile": d.routesAt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: welcome page: %w", err)
	}
	return Respond(res), nil
}

func (d *Dispatcher) fail(route routing.Route, err error) error {
	return &Error{Route: label(route), Action: route.Action.String(), Cause: err}
}

func label(route routing.Route) string {
	if route.Name != "" {
		return route.Name
	}
	return route.Method + " " + route.Path
}
