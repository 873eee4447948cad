package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/km-arc/go-nix/framework/action"
)

type listener struct {
	action   action.Action
	priority int
}

// Manager is a publish-subscribe bus. Listeners for one key run by
// descending priority, in registration order within equal priorities.
//
// Listen is meant for the startup phase; Dispatch is safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	listeners map[Key][]listener
	builder   action.Builder
}

// Option configures a Manager.
type Option func(*Manager)

// WithBuilder makes Method listeners autowired through b.
func WithBuilder(b action.Builder) Option {
	return func(m *Manager) { m.builder = b }
}

// New creates an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{listeners: make(map[Key][]listener)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Listen registers a listener for key. A listener is any function or an
// action.Method; it receives the dispatch payload positionally.
//
//	em.Listen(events.RouteMatched, func(r routing.Route) { ... }, 10)
//	em.Listen(events.Exception, action.Bound((*ErrorReporter)(nil), "Report"), 0)
func (m *Manager) Listen(key Key, l any, priority int) error {
	act, err := action.From(l)
	if err != nil {
		return fmt.Errorf("events: listen %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.listeners[key], listener{action: act, priority: priority})
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority > list[j].priority
	})
	m.listeners[key] = list
	return nil
}

// On registers a listener with priority 0 and panics on an invalid
// listener. Use it in bootstrap code.
func (m *Manager) On(key Key, l any) *Manager {
	if err := m.Listen(key, l, 0); err != nil {
		panic(err)
	}
	return m
}

// Dispatch runs every listener of key with payload and returns their
// results in run order. A key without listeners yields an empty slice.
// The first listener failure stops the dispatch.
func (m *Manager) Dispatch(key Key, payload ...any) ([]any, error) {
	return m.DispatchContext(context.Background(), key, payload...)
}

// DispatchContext is Dispatch with a context made available to listeners
// that declare a context.Context parameter.
func (m *Manager) DispatchContext(ctx context.Context, key Key, payload ...any) ([]any, error) {
	if m == nil {
		return []any{}, nil
	}

	m.mu.RLock()
	list := append([]listener(nil), m.listeners[key]...)
	b := m.builder
	m.mu.RUnlock()

	responses := make([]any, 0, len(list))
	for _, l := range list {
		target, err := l.action.Target(b)
		if err != nil {
			return responses, fmt.Errorf("events: %s listener %s: %w", key, l.action, err)
		}
		out, err := l.action.Call(target, action.Input{Context: ctx, Args: payload})
		if err != nil {
			return responses, fmt.Errorf("events: %s listener %s: %w", key, l.action, err)
		}
		responses = append(responses, out)
	}
	return responses, nil
}

// SetBuilder replaces the builder used for Method listeners.
func (m *Manager) SetBuilder(b action.Builder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builder = b
}

// Has reports whether key has listeners.
func (m *Manager) Has(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[key]) > 0
}

// Forget removes every listener of key.
func (m *Manager) Forget(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listeners, key)
}
