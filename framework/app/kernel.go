// Package app is the application kernel. It registers the framework
// providers, boots plugins and serves HTTP through the dispatcher.
//
//	application, err := app.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	application.Router().Get("/", func() *gohttp.Response {
//	    return gohttp.Text(200, "hello")
//	}, "home")
//	log.Fatal(application.Run(ctx))
package app

import (
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/km-arc/go-nix/framework/config"
	"github.com/km-arc/go-nix/framework/container"
	"github.com/km-arc/go-nix/framework/dispatch"
	"github.com/km-arc/go-nix/framework/events"
	gohttp "github.com/km-arc/go-nix/framework/http"
	"github.com/km-arc/go-nix/framework/observability"
	"github.com/km-arc/go-nix/framework/providers"
	"github.com/km-arc/go-nix/framework/routing"
)

// Version is the framework version.
const Version = "0.1.0"

// Application is the top-level application container.
// It embeds the autowiring container so user code can call app.Set(),
// app.Provide() and app.Make() directly.
type Application struct {
	*container.AutoResolvingContainer
	Providers *container.ProviderRegistry

	pending map[string]Plugin
	order   []string
	plugins []Plugin

	middlewares []func(http.Handler) http.Handler
	static      map[string]string
}

// Option configures New.
type Option func(*settings)

type settings struct {
	envFiles   []string
	cfg        *config.Config
	logWriter  io.Writer
	tracer     trace.TracerProvider
	meter      metric.MeterProvider
	routesFile string
}

// WithEnvFiles sets the .env files to load instead of .env.local and .env.
func WithEnvFiles(files ...string) Option {
	return func(s *settings) { s.envFiles = files }
}

// WithConfig uses cfg instead of loading the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithLogWriter sends the application log to w.
func WithLogWriter(w io.Writer) Option {
	return func(s *settings) { s.logWriter = w }
}

// WithTracerProvider enables tracing through tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracer = tp }
}

// WithMeterProvider enables metrics through mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) { s.meter = mp }
}

// WithRoutesFile names the file the welcome page points to.
func WithRoutesFile(name string) Option {
	return func(s *settings) { s.routesFile = name }
}

// New creates the application and registers the framework providers.
// Services are built lazily; nothing is loaded until first use.
func New(opts ...Option) (*Application, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	ac := container.NewAutoResolving(container.New())
	a := &Application{
		AutoResolvingContainer: ac,
		Providers:              container.NewProviderRegistry(ac),
		pending:                make(map[string]Plugin),
		static:                 make(map[string]string),
	}
	ac.Set("app", a)

	framework := providers.Framework(
		&providers.ConfigServiceProvider{EnvFiles: s.envFiles, Config: s.cfg},
		&providers.LogServiceProvider{Writer: s.logWriter},
		&providers.TelemetryServiceProvider{TracerProvider: s.tracer, MeterProvider: s.meter},
	)
	for _, p := range framework {
		if d, ok := p.(*providers.DispatchServiceProvider); ok {
			d.RoutesFile = s.routesFile
		}
		if err := a.Register(p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// MustNew is like New but panics on failure.
func MustNew(opts ...Option) *Application {
	a, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot registers the plugins and runs the Boot phase of every provider.
// It runs once; Handler and Run call it when needed.
func (a *Application) Boot() error {
	if a.Providers.Booted() {
		return nil
	}
	cfg, err := a.Config()
	if err != nil {
		return err
	}
	if err := a.loadPlugins(cfg.Plugins); err != nil {
		return err
	}
	return a.Providers.Boot()
}

// ── Services ──────────────────────────────────────────────────────────────────

// Config resolves *config.Config from the container.
func (a *Application) Config() (*config.Config, error) {
	return container.Resolve[*config.Config](a, providers.Config)
}

// Router resolves *routing.Router from the container. It panics when the
// router cannot be built, which only happens when a provider was replaced
// by a broken one.
func (a *Application) Router() *routing.Router {
	return container.MustResolve[*routing.Router](a, providers.Router)
}

// Events resolves *events.Manager from the container.
func (a *Application) Events() *events.Manager {
	return container.MustResolve[*events.Manager](a, providers.Events)
}

// Views resolves *gohttp.ViewEngine from the container.
func (a *Application) Views() (*gohttp.ViewEngine, error) {
	return container.Resolve[*gohttp.ViewEngine](a, providers.View)
}

// Guards resolves the *gohttp.Guards registry from the container.
func (a *Application) Guards() (*gohttp.Guards, error) {
	return container.Resolve[*gohttp.Guards](a, providers.Guard)
}

// Logger resolves *slog.Logger from the container.
func (a *Application) Logger() *slog.Logger {
	logger, err := container.Resolve[*slog.Logger](a, providers.Logger)
	if err != nil {
		return slog.Default()
	}
	return logger
}

// Dispatcher resolves *dispatch.Dispatcher from the container.
func (a *Application) Dispatcher() (*dispatch.Dispatcher, error) {
	return container.Resolve[*dispatch.Dispatcher](a, providers.Dispatcher)
}

func (a *Application) spans() observability.SpanManager {
	spans, err := container.Resolve[observability.SpanManager](a, providers.Tracing)
	if err != nil {
		return observability.NoopSpanManager{}
	}
	return spans
}

func (a *Application) metrics() observability.MetricsRecorder {
	m, err := container.Resolve[observability.MetricsRecorder](a, providers.Metrics)
	if err != nil {
		return observability.NoopMetrics{}
	}
	return m
}

// ── Environment ───────────────────────────────────────────────────────────────

// Environment returns APP_ENV.
func (a *Application) Environment() string {
	cfg, err := a.Config()
	if err != nil {
		return ""
	}
	return cfg.App.Env
}

func (a *Application) IsLocal() bool      { return a.Environment() == "local" }
func (a *Application) IsProduction() bool { return a.Environment() == "production" }
func (a *Application) IsTesting() bool    { return a.Environment() == "testing" }

// IsDebug reports APP_DEBUG.
func (a *Application) IsDebug() bool {
	cfg, err := a.Config()
	return err == nil && cfg.App.Debug
}
