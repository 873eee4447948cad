package app

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-nix/framework/dispatch"
	"github.com/km-arc/go-nix/framework/events"
	gohttp "github.com/km-arc/go-nix/framework/http"
	"github.com/km-arc/go-nix/framework/observability"
	"github.com/km-arc/go-nix/framework/routing"
)

//go:embed views/*.html
var builtin embed.FS

// Handler boots the application and returns its http.Handler: a chi mux
// with request ids, real client IPs, panic recovery, request logging and the
// client blacklists, serving static directories and sending everything else
// to the dispatcher. Middleware added with Middleware runs next, then the
// services tagged providers.MiddlewareTag.
func (a *Application) Handler() (http.Handler, error) {
	if err := a.Boot(); err != nil {
		return nil, err
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	d, err := a.Dispatcher()
	if err != nil {
		return nil, err
	}
	guards, err := a.Guards()
	if err != nil {
		return nil, err
	}
	tagged, err := a.taggedMiddleware()
	if err != nil {
		return nil, err
	}

	k := &kernel{
		dispatcher: d,
		guards:     guards,
		events:     a.Events(),
		logger:     a.Logger(),
		spans:      a.spans(),
		metrics:    a.metrics(),
		errors:     gohttp.NewViewEngine(gohttp.MustSub(builtin, "views"), ".html"),
		production: cfg.IsProduction(),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(requestLogger(k.logger))
	mux.Use(middleware.Recoverer)
	mux.Use(k.guard)
	mux.Use(a.middlewares...)
	mux.Use(tagged...)

	static := map[string]string{"/public": cfg.View.PublicDir}
	for prefix, dir := range a.static {
		static[prefix] = dir
	}
	for prefix, dir := range static {
		if dir == "" {
			continue
		}
		prefix = "/" + strings.Trim(prefix, "/")
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
		mux.Get(prefix+"/*", files.ServeHTTP)
	}

	mux.Handle("/*", k)
	return mux, nil
}

// kernel runs the request lifecycle around the dispatcher.
type kernel struct {
	dispatcher *dispatch.Dispatcher
	guards     *gohttp.Guards
	events     *events.Manager
	logger     *slog.Logger
	spans      observability.SpanManager
	metrics    observability.MetricsRecorder
	errors     *gohttp.ViewEngine
	production bool
}

func (k *kernel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := k.spans.StartRequestSpan(r.Context(), r.Method, r.URL.Path)
	req := gohttp.NewRequest(r.WithContext(ctx))

	status, err := k.handle(ctx, w, req)

	route := req.RouteName()
	if route == "" {
		route = "unmatched"
	}
	k.metrics.RecordRequest(ctx, r.Method, route, status, time.Since(start))
	k.spans.EndSpanWithError(span, err)
}

// guard turns away clients on the IP and user agent blacklists, answering
// like any other failed request.
func (k *kernel) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := gohttp.NewRequest(r)
		checks := [][2]string{
			{gohttp.GuardIPBlacklist, req.IP()},
			{gohttp.GuardUserAgentBlacklist, r.UserAgent()},
		}
		for _, check := range checks {
			if _, err := k.guards.Run(check[0], check[1]); err != nil {
				k.fail(r.Context(), w, req, err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handle forwards req and writes the response. It returns the status sent
// and the error that replaced the handler's response, if any.
func (k *kernel) handle(ctx context.Context, w http.ResponseWriter, req *gohttp.Request) (int, error) {
	if _, err := k.events.DispatchContext(ctx, events.RequestStart, req); err != nil {
		return k.fail(ctx, w, req, err), err
	}

	result, err := k.dispatcher.Forward(ctx, req)
	if err != nil {
		return k.fail(ctx, w, req, err), err
	}

	res := result.Response
	if result.Outcome == dispatch.Halted {
		if res == nil {
			return http.StatusOK, nil
		}
		if err := res.WriteTo(w); err != nil {
			k.log(req).Warn("write halted response", slog.String("error", err.Error()))
		}
		return res.StatusCode(), nil
	}

	if _, err := k.events.DispatchContext(ctx, events.ResponseSend, res); err != nil {
		return k.fail(ctx, w, req, err), err
	}
	if _, err := k.events.DispatchContext(ctx, events.ResponseHeader, res); err != nil {
		return k.fail(ctx, w, req, err), err
	}
	res.WriteHeaders(w)

	// Headers are out; later failures can only be logged.
	if _, err := k.events.DispatchContext(ctx, events.ResponseBody, res); err != nil {
		observability.LogRequestError(k.log(req), req.Method(), req.Path(), err)
		return res.StatusCode(), err
	}
	if err := res.WriteBody(w); err != nil {
		k.log(req).Warn("write response body", slog.String("error", err.Error()))
	}
	if _, err := k.events.DispatchContext(ctx, events.ResponseEnd, res); err != nil {
		observability.LogRequestError(k.log(req), req.Method(), req.Path(), err)
		return res.StatusCode(), err
	}
	return res.StatusCode(), nil
}

// fail reports err through the exception event and writes the response of
// the last exception listener that returned one, or an error page.
func (k *kernel) fail(ctx context.Context, w http.ResponseWriter, req *gohttp.Request, err error) int {
	logger := k.log(req)
	observability.LogRequestError(logger, req.Method(), req.Path(), err)

	res := k.errorResponse(req, err)
	out, lerr := k.events.DispatchContext(ctx, events.Exception, err, req)
	if lerr != nil {
		logger.Error("exception listener failed", slog.String("error", lerr.Error()))
	}
	for i := len(out) - 1; i >= 0; i-- {
		if r, ok := out[i].(*gohttp.Response); ok && r != nil {
			res = r
			break
		}
	}

	if werr := res.WriteTo(w); werr != nil {
		logger.Warn("write error response", slog.String("error", werr.Error()))
	}
	return res.StatusCode()
}

// errorResponse renders err for the client. Outside production the error
// text is included; messages given to gohttp.Abort are always shown.
func (k *kernel) errorResponse(req *gohttp.Request, err error) *gohttp.Response {
	status := gohttp.StatusOf(err, http.StatusInternalServerError)
	if errors.Is(err, routing.ErrRouteNotFound) {
		status = http.StatusNotFound
	}

	message := http.StatusText(status)
	var he *gohttp.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		message = he.Message
	}
	detail := ""
	if !k.production {
		detail = err.Error()
	}

	if wantsJSON(req) {
		body := map[string]any{"message": message}
		if detail != "" {
			body["error"] = detail
		}
		return gohttp.JSON(status, body)
	}

	html, rerr := k.errors.Render("error", map[string]any{
		"Status":  status,
		"Title":   http.StatusText(status),
		"Message": message,
		"Detail":  detail,
	})
	if rerr != nil {
		return gohttp.Text(status, message)
	}
	return gohttp.HTML(status, html)
}

func (k *kernel) log(req *gohttp.Request) *slog.Logger {
	return observability.EnrichLogger(k.logger, req.ID(), req.RouteName())
}

func wantsJSON(req *gohttp.Request) bool {
	return req.IsJSON() || strings.Contains(req.Header("Accept"), "application/json")
}
