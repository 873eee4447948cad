package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-nix/framework/observability"
	"github.com/km-arc/go-nix/framework/providers"
)

// ── Middleware ────────────────────────────────────────────────────────────────

// Middleware adds chi-compatible middleware that runs around every request,
// inside the framework's own stack.
//
//	application.Middleware(middleware.Compress(5), AuthMiddleware)
func (a *Application) Middleware(mw ...func(http.Handler) http.Handler) {
	a.middlewares = append(a.middlewares, mw...)
}

// Static serves dir under prefix, e.g. application.Static("/assets", "./assets").
// The public directory of the configuration is served under /public.
func (a *Application) Static(prefix, dir string) {
	a.static[prefix] = dir
}

// taggedMiddleware resolves the services tagged providers.MiddlewareTag.
func (a *Application) taggedMiddleware() ([]func(http.Handler) http.Handler, error) {
	services, err := a.Base().Tagged(providers.MiddlewareTag)
	if err != nil {
		return nil, err
	}
	out := make([]func(http.Handler) http.Handler, 0, len(services))
	for _, s := range services {
		mw, ok := s.(func(http.Handler) http.Handler)
		if !ok {
			return nil, fmt.Errorf("app: %s service is %T, not a middleware", providers.MiddlewareTag, s)
		}
		out = append(out, mw)
	}
	return out, nil
}

// requestLogger logs one line per request with the logger of the
// application. It replaces chi's middleware.Logger, which writes through
// the standard log package.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				observability.LogRequestComplete(
					logger.With(slog.String("request_id", middleware.GetReqID(r.Context()))),
					r.Method, r.URL.Path, status, time.Since(start),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
