// Package providers wires the framework services into the container.
//
// Every service is bound under a short id and aliased under its type key,
// so handlers and constructors can have it autowired:
//
//	func NewUserService(logger *slog.Logger, em *events.Manager) *UserService
package providers

import (
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/km-arc/go-nix/framework/config"
	"github.com/km-arc/go-nix/framework/container"
	"github.com/km-arc/go-nix/framework/dispatch"
	"github.com/km-arc/go-nix/framework/events"
	gohttp "github.com/km-arc/go-nix/framework/http"
	"github.com/km-arc/go-nix/framework/logging"
	"github.com/km-arc/go-nix/framework/observability"
	"github.com/km-arc/go-nix/framework/routing"
)

// Service ids.
const (
	Config     = "config"
	Logger     = "logger"
	Events     = "events"
	Router     = "router"
	View       = "view"
	Tracing    = "tracing"
	Metrics    = "metrics"
	Dispatcher = "dispatcher"
	Guard      = "guard"
)

// MiddlewareTag groups services holding a func(http.Handler) http.Handler.
// The application adds every tagged middleware to its HTTP stack:
//
//	app.Set("auth.middleware", authMiddleware)
//	app.Base().Tag([]string{"auth.middleware"}, providers.MiddlewareTag)
const MiddlewareTag = "middleware"

// bind registers factory under id and aliases the type key of typed to id.
func bind(app *container.AutoResolvingContainer, id string, typed any, factory container.Factory) {
	app.Set(id, factory)
	app.Base().Alias(id, container.TypeKey(typed))
}

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds *config.Config as "config".
//
// With Config set, that value is used as is; otherwise the configuration
// is loaded from EnvFiles, the YAML overlay and the environment on first use.
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
	Config   *config.Config
}

func (p *ConfigServiceProvider) Register(app *container.AutoResolvingContainer) error {
	envFiles, preset := p.EnvFiles, p.Config
	bind(app, Config, (*config.Config)(nil), func(*container.Container) (any, error) {
		if preset != nil {
			return preset, nil
		}
		return config.Load(envFiles...)
	})
	return nil
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider binds the application *slog.Logger as "logger".
type LogServiceProvider struct {
	container.BaseProvider
	Writer io.Writer // default: stderr
}

func (p *LogServiceProvider) Register(app *container.AutoResolvingContainer) error {
	w := p.Writer
	bind(app, Logger, (*slog.Logger)(nil), func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, Config)
		if err != nil {
			return nil, err
		}
		var opts []logging.Option
		if w != nil {
			opts = append(opts, logging.WithWriter(w))
		}
		return logging.New(cfg, opts...), nil
	})
	return nil
}

// ── EventServiceProvider ──────────────────────────────────────────────────────

// EventServiceProvider binds the *events.Manager as "events". Method
// listeners are autowired through the application container.
type EventServiceProvider struct {
	container.BaseProvider
}

func (p *EventServiceProvider) Register(app *container.AutoResolvingContainer) error {
	bind(app, Events, (*events.Manager)(nil), func(*container.Container) (any, error) {
		return events.New(events.WithBuilder(app)), nil
	})
	return nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider binds the *routing.Router as "router". The router
// dispatches its route.* events through "events".
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.AutoResolvingContainer) error {
	bind(app, Router, (*routing.Router)(nil), func(c *container.Container) (any, error) {
		em, err := container.Resolve[*events.Manager](c, Events)
		if err != nil {
			return nil, err
		}
		return routing.New(routing.WithEvents(em)), nil
	})
	return nil
}

// ── ViewServiceProvider ───────────────────────────────────────────────────────

// ViewServiceProvider binds the *gohttp.ViewEngine as "view". It is
// deferred: templates are only set up when something asks for them.
//
// Dir and Ext default to view.dir and view.ext of "config". Templates get
// two helpers backed by the router:
//
//	<a href="{{ route "users.show" "id" 7 }}" class="{{ active "on" "users.show" }}">
type ViewServiceProvider struct {
	container.BaseProvider
	Dir string
	Ext string
}

func (p *ViewServiceProvider) IsDeferred() bool   { return true }
func (p *ViewServiceProvider) Provides() []string { return []string{View} }

func (p *ViewServiceProvider) Register(app *container.AutoResolvingContainer) error {
	dir, ext := p.Dir, p.Ext
	bind(app, View, (*gohttp.ViewEngine)(nil), func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, Config)
		if err != nil {
			return nil, err
		}
		router, err := container.Resolve[*routing.Router](c, Router)
		if err != nil {
			return nil, err
		}
		if dir == "" {
			dir = cfg.View.Dir
		}
		if ext == "" {
			ext = cfg.View.Ext
		}
		return gohttp.NewViewEngineDir(dir, ext).Funcs(map[string]any{
			"route":  routeFunc(router),
			"active": router.Active,
		}), nil
	})
	return nil
}

// routeFunc adapts Router.URL to key/value pairs, the natural call shape
// inside a template.
func routeFunc(router *routing.Router) func(name string, pairs ...any) (string, error) {
	return func(name string, pairs ...any) (string, error) {
		if len(pairs)%2 != 0 {
			return "", fmt.Errorf("route %s: odd number of parameters", name)
		}
		params := make(map[string]any, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			params[fmt.Sprint(pairs[i])] = pairs[i+1]
		}
		return router.URL(name, params)
	}
}

// ── GuardServiceProvider ──────────────────────────────────────────────────────

// GuardServiceProvider binds the *gohttp.Guards registry as "guard", holding
// the built-in guards with the blacklists of guard.* in "config".
type GuardServiceProvider struct {
	container.BaseProvider
}

func (p *GuardServiceProvider) Register(app *container.AutoResolvingContainer) error {
	bind(app, Guard, (*gohttp.Guards)(nil), func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, Config)
		if err != nil {
			return nil, err
		}
		return gohttp.DefaultGuards(cfg.Guard.IPBlacklist, cfg.Guard.UserAgentBlacklist), nil
	})
	return nil
}

// ── TelemetryServiceProvider ──────────────────────────────────────────────────

// TelemetryServiceProvider binds the observability.SpanManager as "tracing"
// and the observability.MetricsRecorder as "metrics".
//
// Both are no-ops unless telemetry.enabled is set or a provider is given.
// Nil providers mean the global OTel ones.
type TelemetryServiceProvider struct {
	container.BaseProvider
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func (p *TelemetryServiceProvider) Register(app *container.AutoResolvingContainer) error {
	tp, mp := p.TracerProvider, p.MeterProvider

	bind(app, Tracing, (*observability.SpanManager)(nil), func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, Config)
		if err != nil {
			return nil, err
		}
		if !cfg.Telemetry.Enabled && tp == nil {
			return observability.NoopSpanManager{}, nil
		}
		return observability.NewSpanManager(tp), nil
	})

	bind(app, Metrics, (*observability.MetricsRecorder)(nil), func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, Config)
		if err != nil {
			return nil, err
		}
		if !cfg.Telemetry.Enabled && mp == nil {
			return observability.NoopMetrics{}, nil
		}
		return observability.NewMetricsRecorder(mp), nil
	})
	return nil
}

// ── DispatchServiceProvider ───────────────────────────────────────────────────

// DispatchServiceProvider binds the *dispatch.Dispatcher as "dispatcher".
// Controllers of Method actions are autowired through the container.
type DispatchServiceProvider struct {
	container.BaseProvider
	RoutesFile string // shown on the welcome page, default "main.go"
}

func (p *DispatchServiceProvider) Register(app *container.AutoResolvingContainer) error {
	routesFile := p.RoutesFile
	if routesFile == "" {
		routesFile = "main.go"
	}
	bind(app, Dispatcher, (*dispatch.Dispatcher)(nil), func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, Config)
		if err != nil {
			return nil, err
		}
		router, err := container.Resolve[*routing.Router](c, Router)
		if err != nil {
			return nil, err
		}
		em, err := container.Resolve[*events.Manager](c, Events)
		if err != nil {
			return nil, err
		}
		spans, err := container.Resolve[observability.SpanManager](c, Tracing)
		if err != nil {
			return nil, err
		}
		metrics, err := container.Resolve[observability.MetricsRecorder](c, Metrics)
		if err != nil {
			return nil, err
		}
		return dispatch.New(router,
			dispatch.WithEvents(em),
			dispatch.WithBuilder(app),
			dispatch.WithTracing(spans),
			dispatch.WithMetrics(metrics),
			dispatch.WithWelcome(cfg.App.Name, routesFile),
		), nil
	})
	return nil
}

// ── Defaults ──────────────────────────────────────────────────────────────────

// Framework returns the framework providers in registration order.
func Framework(cfg *ConfigServiceProvider, log *LogServiceProvider, telemetry *TelemetryServiceProvider) []container.ServiceProvider {
	if cfg == nil {
		cfg = &ConfigServiceProvider{}
	}
	if log == nil {
		log = &LogServiceProvider{}
	}
	if telemetry == nil {
		telemetry = &TelemetryServiceProvider{}
	}
	return []container.ServiceProvider{
		cfg,
		log,
		&EventServiceProvider{},
		&RoutingServiceProvider{},
		&ViewServiceProvider{},
		&GuardServiceProvider{},
		telemetry,
		&DispatchServiceProvider{},
	}
}
