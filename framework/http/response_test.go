package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gohttp "github.com/km-arc/go-nix/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func written(t *testing.T, res *gohttp.Response) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, res.WriteTo(rr))
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&m))
	return m
}

// ── Plain ─────────────────────────────────────────────────────────────────────

func TestResponse_Text(t *testing.T) {
	rr := written(t, gohttp.Text(http.StatusOK, "User:123"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "User:123", rr.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "8", rr.Header().Get("Content-Length"))
}

func TestResponse_DefaultStatus(t *testing.T) {
	rr := written(t, &gohttp.Response{Body: []byte("ok")})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestResponse_WithHeader(t *testing.T) {
	res := gohttp.HTML(http.StatusAccepted, "<p>hi</p>").WithHeader("X-Trace", "1")
	rr := written(t, res)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Trace"))
	assert.Equal(t, "<p>hi</p>", res.String())
}

// ── JSON ──────────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	rr := written(t, gohttp.JSON(http.StatusOK, map[string]any{"key": "val"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "val", decodeJSON(t, rr)["key"])
}

func TestResponse_JSON_Unencodable(t *testing.T) {
	rr := written(t, gohttp.JSON(http.StatusOK, map[string]any{"ch": make(chan int)}))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Server Error.", decodeJSON(t, rr)["message"])
}

func TestResponse_Envelopes(t *testing.T) {
	rr := written(t, gohttp.Success(map[string]any{"id": 1}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"id": float64(1)}, decodeJSON(t, rr)["data"])

	rr = written(t, gohttp.Created("x"))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "x", decodeJSON(t, rr)["data"])
}

func TestResponse_NoContent(t *testing.T) {
	rr := written(t, gohttp.NoContent())
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestResponse_Errors(t *testing.T) {
	tests := []struct {
		res     *gohttp.Response
		status  int
		message string
	}{
		{gohttp.Error(http.StatusTeapot, "short and stout"), http.StatusTeapot, "short and stout"},
		{gohttp.Unauthorized(), http.StatusUnauthorized, "Unauthenticated."},
		{gohttp.Forbidden(), http.StatusForbidden, "This action is unauthorized."},
		{gohttp.NotFound(), http.StatusNotFound, "Not found."},
		{gohttp.NotFound("No such user."), http.StatusNotFound, "No such user."},
		{gohttp.ServerError(), http.StatusInternalServerError, "Server Error."},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status, tt.message), func(t *testing.T) {
			rr := written(t, tt.res)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, decodeJSON(t, rr)["message"])
		})
	}
}

// ── Redirects ────────────────────────────────────────────────────────────────

func TestResponse_Redirect(t *testing.T) {
	rr := written(t, gohttp.Redirect(http.StatusMovedPermanently, "/new"))
	assert.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, "/new", rr.Header().Get("Location"))
}

func TestResponse_RedirectBack(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/form", nil)
	r.Header.Set("Referer", "/previous")
	res := gohttp.RedirectBack(gohttp.NewRequest(r), "/fallback")
	assert.Equal(t, "/previous", res.Header.Get("Location"))

	res = gohttp.RedirectBack(gohttp.NewRequest(httptest.NewRequest(http.MethodPost, "/form", nil)), "/fallback")
	assert.Equal(t, http.StatusFound, res.StatusCode())
	assert.Equal(t, "/fallback", res.Header.Get("Location"))
}

// ── Errors ────────────────────────────────────────────────────────────────────

func TestAbort(t *testing.T) {
	err := gohttp.Abort(http.StatusForbidden)

	var he *gohttp.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "Forbidden", he.Message)
	assert.Equal(t, http.StatusForbidden, gohttp.StatusOf(fmt.Errorf("wrapped: %w", err), 500))
	assert.Equal(t, 500, gohttp.StatusOf(errors.New("plain"), 500))
}

// ── Views ─────────────────────────────────────────────────────────────────────

func TestMustSub(t *testing.T) {
	fsys := fstest.MapFS{"views/hi.html": {Data: []byte("hi {{ . }}")}}

	out, err := gohttp.NewViewEngine(gohttp.MustSub(fsys, "views"), ".html").Render("hi", "there")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)

	assert.Panics(t, func() { gohttp.MustSub(fsys, "../views") })
}

func TestViewEngine(t *testing.T) {
	fsys := fstest.MapFS{
		"home.html":   {Data: []byte(`<h1>{{ .Title }}</h1>`)},
		"layout.html": {Data: []byte(`<main>{{ template "page.html" . }}</main>`)},
		"page.html":   {Data: []byte(`<p>{{ shout .Title }}</p>`)},
	}
	views := gohttp.NewViewEngine(fsys, ".html").Funcs(map[string]any{
		"shout": func(s string) string { return s + "!" },
	})

	html, err := views.Render("home", map[string]any{"Title": "Home"})
	require.NoError(t, err)
	assert.Equal(t, "<h1>Home</h1>", html)

	html, err = views.RenderWithLayout("layout", "page", map[string]any{"Title": "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "<main><p>Hi!</p></main>", html)

	res, err := views.View("home", map[string]any{"Title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))

	assert.True(t, views.Exists("home"))
	assert.False(t, views.Exists("missing"))

	_, err = views.Render("missing", nil)
	assert.Error(t, err)
}
