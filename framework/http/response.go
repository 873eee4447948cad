package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// ── Response ─────────────────────────────────────────────────────────────────

// Response is the value a handler returns. Nothing is written until the
// kernel calls WriteTo, so listeners may still change status, headers or
// body after the handler ran.
//
//	return gohttp.JSON(http.StatusOK, map[string]any{"message": "ok"})
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a response with status and body.
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Header: make(http.Header), Body: body}
}

// WithHeader sets a header and returns res.
func (res *Response) WithHeader(key, value string) *Response {
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	res.Header.Set(key, value)
	return res
}

// StatusCode returns Status, defaulting to 200.
func (res *Response) StatusCode() int {
	if res.Status == 0 {
		return http.StatusOK
	}
	return res.Status
}

// String returns the body.
func (res *Response) String() string { return string(res.Body) }

// WriteHeaders writes headers and status to w.
func (res *Response) WriteHeaders(w http.ResponseWriter) {
	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if w.Header().Get("Content-Length") == "" && res.StatusCode() != http.StatusNoContent {
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Body)))
	}
	w.WriteHeader(res.StatusCode())
}

// WriteBody writes the body to w.
func (res *Response) WriteBody(w io.Writer) error {
	if len(res.Body) == 0 {
		return nil
	}
	_, err := w.Write(res.Body)
	return err
}

// WriteTo writes the whole response to w.
func (res *Response) WriteTo(w http.ResponseWriter) error {
	res.WriteHeaders(w)
	return res.WriteBody(w)
}

// ── Plain responses ───────────────────────────────────────────────────────────

// Text returns a text/plain response.
//
//	return gohttp.Text(http.StatusOK, "User:"+id)
func Text(status int, body string) *Response {
	return NewResponse(status, []byte(body)).
		WithHeader("Content-Type", "text/plain; charset=utf-8")
}

// HTML returns a text/html response.
func HTML(status int, body string) *Response {
	return NewResponse(status, []byte(body)).
		WithHeader("Content-Type", "text/html; charset=utf-8")
}

// ── JSON responses ────────────────────────────────────────────────────────────

// JSON returns a JSON response. A value that cannot be encoded yields a
// 500 with a JSON error body.
//
//	gohttp.JSON(http.StatusOK, map[string]any{"message": "ok"})
func JSON(status int, data any) *Response {
	b, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		b, _ = json.Marshal(envelope{"message": "Server Error."})
	}
	return NewResponse(status, append(b, '\n')).
		WithHeader("Content-Type", "application/json")
}

// Success returns 200 JSON: {"data": v}
func Success(v any) *Response {
	return JSON(http.StatusOK, envelope{"data": v})
}

// Created returns 201 JSON: {"data": v}
func Created(v any) *Response {
	return JSON(http.StatusCreated, envelope{"data": v})
}

// NoContent returns 204 with no body.
func NoContent() *Response {
	return NewResponse(http.StatusNoContent, nil)
}

// Error returns a JSON error response.
//
//	gohttp.Error(http.StatusNotFound, "Resource not found")
func Error(status int, message string) *Response {
	return JSON(status, envelope{"message": message})
}

// Unauthorized returns 401.
func Unauthorized(message ...string) *Response {
	return Error(http.StatusUnauthorized, first(message, "Unauthenticated."))
}

// Forbidden returns 403.
func Forbidden(message ...string) *Response {
	return Error(http.StatusForbidden, first(message, "This action is unauthorized."))
}

// NotFound returns 404.
func NotFound(message ...string) *Response {
	return Error(http.StatusNotFound, first(message, "Not found."))
}

// ServerError returns 500.
func ServerError(message ...string) *Response {
	return Error(http.StatusInternalServerError, first(message, "Server Error."))
}

// ── Redirects ────────────────────────────────────────────────────────────────

// Redirect returns a redirect with the given status.
//
//	gohttp.Redirect(http.StatusFound, "/dashboard")
func Redirect(status int, url string) *Response {
	return NewResponse(status, nil).WithHeader("Location", url)
}

// RedirectTo returns a 302 redirect.
func RedirectTo(url string) *Response {
	return Redirect(http.StatusFound, url)
}

// RedirectBack redirects to the Referer header (or fallback URL).
func RedirectBack(req *Request, fallback string) *Response {
	ref := req.Header("Referer")
	if ref == "" {
		ref = fallback
	}
	return RedirectTo(ref)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
