package dispatch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/km-arc/go-nix/framework/action"
	"github.com/km-arc/go-nix/framework/container"
	"github.com/km-arc/go-nix/framework/dispatch"
	"github.com/km-arc/go-nix/framework/events"
	gohttp "github.com/km-arc/go-nix/framework/http"
	"github.com/km-arc/go-nix/framework/observability"
	"github.com/km-arc/go-nix/framework/routing"
)

// ── fixtures ─────────────────────────────────────────────────────────────────

type testController struct{}

func (*testController) TestResponse() *gohttp.Response {
	return gohttp.Text(http.StatusOK, "test")
}

type greeter struct{ greeting string }

type greetController struct {
	g *greeter
}

func newGreetController(g *greeter) *greetController { return &greetController{g: g} }

func (c *greetController) Hello(name string) *gohttp.Response {
	return gohttp.Text(http.StatusOK, c.g.greeting+" "+name)
}

func forward(t *testing.T, d *dispatch.Dispatcher, method, target string) (dispatch.Result, error) {
	t.Helper()
	req := gohttp.NewRequest(httptest.NewRequest(method, target, nil))
	return d.Forward(context.Background(), req)
}

// ── Scenarios ─────────────────────────────────────────────────────────────────

func TestForward_FunctionHandlerWithParams(t *testing.T) {
	r := routing.New().Get("/user/{id}", func(id string) *gohttp.Response {
		return gohttp.Text(http.StatusOK, "User:"+id)
	}, "user.show")

	res, err := forward(t, dispatch.New(r), "GET", "/user/123")
	require.NoError(t, err)
	assert.Equal(t, dispatch.Continue, res.Outcome)
	assert.Equal(t, "User:123", res.Response.String())
}

func TestForward_WelcomePageWithoutRoutes(t *testing.T) {
	d := dispatch.New(routing.New(), dispatch.WithWelcome("Acme", "cmd/acme/routes.go"))

	res, err := forward(t, d, "GET", "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Response.StatusCode())
	assert.Contains(t, res.Response.String(), "To begin developing, you may add your first route to")
	assert.Contains(t, res.Response.String(), "cmd/acme/routes.go")
	assert.Contains(t, res.Response.String(), "Acme")
}

func TestForward_NotFoundWithoutRoutes(t *testing.T) {
	d := dispatch.New(routing.New())

	_, err := forward(t, d, "GET", "/anything-else")
	assert.ErrorIs(t, err, routing.ErrRouteNotFound)

	_, err = forward(t, d, "POST", "/")
	assert.ErrorIs(t, err, routing.ErrRouteNotFound)
}

func TestForward_InvalidResponse(t *testing.T) {
	r := routing.New().Get("/", func() string { return "not a response" })

	_, err := forward(t, dispatch.New(r), "GET", "/")
	require.Error(t, err)
	assert.ErrorIs(t, err, dispatch.ErrNoValidResponse)
	assert.Contains(t, err.Error(), "no valid response returned")

	var de *dispatch.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "GET /", de.Route)
}

func TestForward_NilResponseIsInvalid(t *testing.T) {
	r := routing.New().Get("/", func() *gohttp.Response { return nil })

	_, err := forward(t, dispatch.New(r), "GET", "/")
	assert.ErrorIs(t, err, dispatch.ErrNoValidResponse)
}

func TestForward_ClassController(t *testing.T) {
	r := routing.New().Get("/test", action.Bound((*testController)(nil), "TestResponse"))

	res, err := forward(t, dispatch.New(r), "GET", "/test")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Response.StatusCode())
	assert.Equal(t, "test", res.Response.String())
}

func TestForward_AutowiredController(t *testing.T) {
	c := container.NewAutoResolving(container.New())
	c.Set(container.TypeKey(&greeter{}), &greeter{greeting: "Hello"})
	c.MustProvide(newGreetController)

	r := routing.New().Get("/hello/{name}", action.Bound((*greetController)(nil), "Hello"))

	res, err := forward(t, dispatch.New(r, dispatch.WithBuilder(c)), "GET", "/hello/Ada")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", res.Response.String())
}

func TestForward_InjectsRequestAndContext(t *testing.T) {
	type ctxKey struct{}
	r := routing.New().Get("/items/{id}", func(ctx context.Context, req *gohttp.Request, id int) *gohttp.Response {
		return gohttp.JSON(http.StatusOK, map[string]any{
			"id":    id,
			"param": req.RouteParam("id"),
			"ctx":   ctx.Value(ctxKey{}),
		})
	}, "items.show")

	req := gohttp.NewRequest(httptest.NewRequest("GET", "/items/9", nil))
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	res, err := dispatch.New(r).Forward(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9,"param":"9","ctx":"v"}`, res.Response.String())
}

func TestForward_HandlerErrorIsWrapped(t *testing.T) {
	r := routing.New().Get("/secret", func() (*gohttp.Response, error) {
		return nil, gohttp.Abort(http.StatusForbidden)
	}, "secret")

	_, err := forward(t, dispatch.New(r), "GET", "/secret")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, gohttp.StatusOf(err, 500))

	var de *dispatch.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "secret", de.Route)
}

func TestForward_ArgumentConversionFails(t *testing.T) {
	r := routing.New().Get("/n/{n}", func(n int) *gohttp.Response { return gohttp.NoContent() })

	_, err := forward(t, dispatch.New(r), "GET", "/n/abc")
	assert.ErrorIs(t, err, action.ErrArgument)
}

// ── Events ────────────────────────────────────────────────────────────────────

func TestForward_ControllerEvents(t *testing.T) {
	em := events.New()
	var seen []string
	em.On(events.ControllerCalling, func(req *gohttp.Request, target any, act action.Action) {
		seen = append(seen, "calling "+req.Path())
	})
	em.On(events.ControllerCalled, func(req *gohttp.Request, target any, act action.Action, out any) {
		seen = append(seen, "called "+out.(*gohttp.Response).String())
	})

	r := routing.New().Get("/", func() *gohttp.Response { return gohttp.Text(200, "ok") })
	_, err := forward(t, dispatch.New(r, dispatch.WithEvents(em)), "GET", "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"calling /", "called ok"}, seen)
}

func TestForward_CallingEventReceivesTarget(t *testing.T) {
	em := events.New()
	var target any
	em.On(events.ControllerCalling, func(_ *gohttp.Request, t any) { target = t })

	r := routing.New().Get("/test", action.Bound((*testController)(nil), "TestResponse"))
	_, err := forward(t, dispatch.New(r, dispatch.WithEvents(em)), "GET", "/test")
	require.NoError(t, err)
	assert.IsType(t, &testController{}, target)
}

func TestForward_HaltSkipsCalledEvent(t *testing.T) {
	em := events.New()
	called := false
	em.On(events.ControllerCalled, func() { called = true })

	r := routing.New().Get("/stream", func() dispatch.Result { return dispatch.Stop(nil) })
	res, err := forward(t, dispatch.New(r, dispatch.WithEvents(em)), "GET", "/stream")
	require.NoError(t, err)
	assert.Equal(t, dispatch.Halted, res.Outcome)
	assert.Nil(t, res.Response)
	assert.False(t, called)
}

func TestForward_ResultContinue(t *testing.T) {
	r := routing.New().Get("/", func() dispatch.Result {
		return dispatch.Respond(gohttp.Text(201, "made"))
	})

	res, err := forward(t, dispatch.New(r), "GET", "/")
	require.NoError(t, err)
	assert.Equal(t, 201, res.Response.StatusCode())
}

func TestForward_ListenerFailureStops(t *testing.T) {
	boom := errors.New("listener failed")
	em := events.New()
	em.On(events.ControllerCalling, func() error { return boom })

	ran := false
	r := routing.New().Get("/", func() *gohttp.Response { ran = true; return gohttp.NoContent() })
	_, err := forward(t, dispatch.New(r, dispatch.WithEvents(em)), "GET", "/")
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

// ── Tracing ───────────────────────────────────────────────────────────────────

func TestForward_HandlerSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := routing.New().Get("/", func() *gohttp.Response { return gohttp.NoContent() }, "home")
	d := dispatch.New(r, dispatch.WithTracing(observability.NewSpanManager(tp)))

	_, err := forward(t, d, "GET", "/")
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "handler home", spans[0].Name)
}
