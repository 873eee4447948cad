package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"sync"
)

// ── View / Templates ─────────────────────────────────────────────────────────

// ViewEngine renders html/template files from a file system. Parsed
// templates are cached per name.
type ViewEngine struct {
	fsys  fs.FS
	ext   string
	funcs template.FuncMap

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// MustSub is fs.Sub for trees known at compile time, such as embedded
// template directories. It panics when dir is not a valid path.
func MustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("http: sub tree %q: %v", dir, err))
	}
	return sub
}

// NewViewEngine creates a ViewEngine over fsys.
// ext is the file extension (e.g. ".html").
func NewViewEngine(fsys fs.FS, ext string) *ViewEngine {
	return &ViewEngine{
		fsys:  fsys,
		ext:   ext,
		funcs: template.FuncMap{},
		cache: make(map[string]*template.Template),
	}
}

// NewViewEngineDir creates a ViewEngine over a directory (e.g. "./views").
func NewViewEngineDir(dir, ext string) *ViewEngine {
	return NewViewEngine(os.DirFS(dir), ext)
}

// Funcs adds template functions. Call it before the first render.
//
//	views.Funcs(template.FuncMap{"active": router.Active})
func (ve *ViewEngine) Funcs(funcs template.FuncMap) *ViewEngine {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	for k, f := range funcs {
		ve.funcs[k] = f
	}
	ve.cache = make(map[string]*template.Template)
	return ve
}

// Exists reports whether the named view file exists.
func (ve *ViewEngine) Exists(name string) bool {
	_, err := fs.Stat(ve.fsys, name+ve.ext)
	return err == nil
}

// Render renders a view with data.
//
//	html, err := views.Render("home", map[string]any{"title": "Home"})
func (ve *ViewEngine) Render(name string, data any) (string, error) {
	return ve.render(name, name, data)
}

// RenderWithLayout renders a view inside a base layout. The layout
// invokes the view through {{ template "content" . }} or by file name.
func (ve *ViewEngine) RenderWithLayout(layout, name string, data any) (string, error) {
	return ve.render(layout, layout, data, name)
}

// View renders a view into a 200 HTML response.
func (ve *ViewEngine) View(name string, data any) (*Response, error) {
	html, err := ve.Render(name, data)
	if err != nil {
		return nil, err
	}
	return HTML(http.StatusOK, html), nil
}

func (ve *ViewEngine) render(key, entry string, data any, extra ...string) (string, error) {
	for _, n := range extra {
		key += "+" + n
	}

	tmpl, err := ve.template(key, append([]string{entry}, extra...))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, path.Base(entry+ve.ext), data); err != nil {
		return "", fmt.Errorf("view: render %s: %w", entry, err)
	}
	return buf.String(), nil
}

func (ve *ViewEngine) template(key string, names []string) (*template.Template, error) {
	ve.mu.RLock()
	tmpl, ok := ve.cache[key]
	ve.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	ve.mu.Lock()
	defer ve.mu.Unlock()
	if tmpl, ok := ve.cache[key]; ok {
		return tmpl, nil
	}

	files := make([]string, len(names))
	for i, n := range names {
		files[i] = n + ve.ext
	}
	tmpl, err := template.New(path.Base(files[0])).Funcs(ve.funcs).ParseFS(ve.fsys, files...)
	if err != nil {
		return nil, fmt.Errorf("view: %w", err)
	}
	ve.cache[key] = tmpl
	return tmpl, nil
}
