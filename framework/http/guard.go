package http

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Built-in guard names.
const (
	GuardSafePath           = "safePath"
	GuardSafeOutput         = "safeOutput"
	GuardIPBlacklist        = "ipBlacklist"
	GuardUserAgentBlacklist = "userAgentBlacklist"
)

var (
	// ErrInsecurePath is returned for paths that may leave the application root.
	ErrInsecurePath = errors.New("insecure path")

	// ErrBlacklisted is the cause of the 403 errors the blacklist guards return.
	ErrBlacklisted = errors.New("blacklisted")
)

// GuardFunc checks or cleans its payload. A non-nil error rejects it.
type GuardFunc func(payload ...any) (any, error)

// Guards is a registry of named security checks.
//
//	guards.Register("apiKey", func(p ...any) (any, error) { ... })
//	if _, err := guards.Run(gohttp.GuardIPBlacklist, req.IP()); err != nil {
//	    return nil, err // 403
//	}
type Guards struct {
	mu     sync.RWMutex
	guards map[string]GuardFunc
}

// NewGuards returns an empty registry.
func NewGuards() *Guards {
	return &Guards{guards: make(map[string]GuardFunc)}
}

// DefaultGuards returns a registry holding the four built-in guards. The
// blacklist guards check against the given lists unless a call passes its own.
func DefaultGuards(ipBlacklist, userAgentBlacklist []string) *Guards {
	g := NewGuards()
	g.Register(GuardSafePath, func(p ...any) (any, error) {
		path, err := stringArg(GuardSafePath, p)
		if err != nil {
			return nil, err
		}
		return SafePath(path)
	})
	g.Register(GuardSafeOutput, func(p ...any) (any, error) {
		if len(p) == 0 {
			return nil, fmt.Errorf("guard %s: missing value", GuardSafeOutput)
		}
		switch v := p[0].(type) {
		case string:
			return SafeOutput(v), nil
		case []string:
			out := make([]string, len(v))
			for i, s := range v {
				out[i] = SafeOutput(s)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("guard %s: cannot escape %T", GuardSafeOutput, p[0])
		}
	})
	g.Register(GuardIPBlacklist, blacklist(GuardIPBlacklist, "IP address is blacklisted!", ipBlacklist))
	g.Register(GuardUserAgentBlacklist, blacklist(GuardUserAgentBlacklist, "UserAgent is blacklisted!", userAgentBlacklist))
	return g
}

// Register adds or replaces the guard called name.
func (g *Guards) Register(name string, fn GuardFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guards[name] = fn
}

// Has reports whether a guard called name is registered.
func (g *Guards) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.guards[name]
	return ok
}

// Run calls the guard called name. Unknown names yield (nil, nil).
func (g *Guards) Run(name string, payload ...any) (any, error) {
	g.mu.RLock()
	fn, ok := g.guards[name]
	g.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return fn(payload...)
}

// ── Built-in checks ───────────────────────────────────────────────────────────

var safePathChars = regexp.MustCompile(`^[A-Za-z0-9_/.-]+$`)

// SafePath returns path when it is relative, stays below its root and holds
// only letters, digits and _ / . -
func SafePath(path string) (string, error) {
	if path == "" ||
		strings.Contains(path, "..") ||
		strings.HasPrefix(path, "/") ||
		strings.Contains(path, "://") ||
		!safePathChars.MatchString(path) {
		return "", fmt.Errorf("%w: %q", ErrInsecurePath, path)
	}
	return path, nil
}

// SafeOutput escapes s for HTML, quotes included.
func SafeOutput(s string) string {
	return html.EscapeString(s)
}

// blacklist builds a guard that rejects its first argument when it appears
// in the list passed as second argument, or in fallback when none is.
func blacklist(name, message string, fallback []string) GuardFunc {
	return func(p ...any) (any, error) {
		value, err := stringArg(name, p)
		if err != nil {
			return nil, err
		}
		list := fallback
		if len(p) > 1 {
			if custom, ok := p[1].([]string); ok && len(custom) > 0 {
				list = custom
			}
		}
		if slices.Contains(list, value) {
			return false, &HTTPError{Status: http.StatusForbidden, Message: message, Cause: ErrBlacklisted}
		}
		return true, nil
	}
}

func stringArg(name string, p []any) (string, error) {
	if len(p) == 0 {
		return "", fmt.Errorf("guard %s: missing value", name)
	}
	s, ok := p[0].(string)
	if !ok {
		return "", fmt.Errorf("guard %s: want string, got %T", name, p[0])
	}
	return s, nil
}
