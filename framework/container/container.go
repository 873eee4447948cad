package container

import (
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"sync"
)

// ── Entry types ───────────────────────────────────────────────────────────────

// Factory builds a service value from the container. A factory registered
// under an id runs at most once; its result replaces it.
type Factory func(c *Container) (any, error)

// entry is one registration. It transitions factory → value exactly once
// and never reverts; Reset drops the entry altogether.
type entry struct {
	mu       sync.Mutex
	factory  Factory
	value    any
	resolved bool
}

// Getter is the read side shared by Container and AutoResolvingContainer.
type Getter interface {
	Get(id string) (any, error)
	Has(id string) bool
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is a lazy service locator.
//
// It supports:
//   - Set / Get / Has / Reset
//   - Alias (alternative ids for one entry)
//   - Tags (group several ids under one name)
//
// Get is safe for concurrent use; a factory is never run twice for the same
// entry. A factory that reaches its own id again, directly or through other
// factories and Make, fails with a *CircularDependencyError.
type Container struct {
	mu sync.RWMutex

	// id → registration
	entries map[string]*entry

	// alias → canonical id
	aliases map[string]string

	// tag → []id
	tags map[string][]string

	// goroutine → ids whose factories it is running, outermost first
	resolvingMu sync.Mutex
	resolving   map[uint64][]string
}

// New creates an empty container with itself bound under "container".
func New() *Container {
	c := &Container{
		entries:   make(map[string]*entry),
		aliases:   make(map[string]string),
		tags:      make(map[string][]string),
		resolving: make(map[uint64][]string),
	}
	c.Set("container", c)
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Set stores a factory or a value under id, replacing any previous entry.
// Factories are not evaluated until the first Get.
//
//	c.Set("config", cfg)
//	c.Set(container.TypeKey((*Mailer)(nil)), func(c *container.Container) (any, error) {
//	    cfg, err := container.Resolve[*config.Config](c, "config")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return mail.NewSMTP(cfg.Mail), nil
//	})
func (c *Container) Set(id string, factoryOrValue any) {
	e := &entry{}
	switch f := factoryOrValue.(type) {
	case Factory:
		e.factory = f
	case func(*Container) (any, error):
		e.factory = f
	case func(*Container) any:
		e.factory = func(c *Container) (any, error) { return f(c), nil }
	default:
		e.value = factoryOrValue
		e.resolved = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.canonical(id)] = e
}

// Alias registers an alternative id for an existing one.
func (c *Container) Alias(id, alias string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", id))
	}
	c.aliases[alias] = c.canonical(id)
}

// Tag associates ids under a named group.
func (c *Container) Tag(ids []string, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], ids...)
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Get returns the service stored under id, running its factory on first
// access. Factory failures (errors and panics) come back as *Error.
func (c *Container) Get(id string) (any, error) {
	c.mu.RLock()
	key := c.canonical(id)
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, errNotFound(id)
	}

	if err := c.lockEntry(key, e); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if e.resolved {
		return e.value, nil
	}

	g := goroutineID()
	c.enter(g, key)
	instance, err := c.runFactory(key, e.factory)
	c.leave(g)
	if err != nil {
		return nil, err
	}
	e.value, e.resolved, e.factory = instance, true, nil
	return instance, nil
}

// lockEntry takes e.mu. When the entry is busy and the calling goroutine is
// the one running its factory, the lock would never be released, so the
// cycle is reported instead.
func (c *Container) lockEntry(key string, e *entry) error {
	if e.mu.TryLock() {
		return nil
	}
	if chain, ok := c.cycle(goroutineID(), key); ok {
		return &CircularDependencyError{Chain: chain}
	}
	e.mu.Lock()
	return nil
}

// runFactory executes a factory, turning a panic into an error.
func (c *Container) runFactory(key string, f Factory) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance, err = nil, errContainer(key, "factory panicked: %v", r)
		}
	}()

	instance, err = f(c)
	if err != nil {
		return nil, wrapContainer(key, err, "factory failed")
	}
	return instance, nil
}

// Tagged resolves every id registered under tag, in registration order.
func (c *Container) Tagged(tag string) ([]any, error) {
	c.mu.RLock()
	ids := append([]string(nil), c.tags[tag]...)
	c.mu.RUnlock()

	result := make([]any, 0, len(ids))
	for _, id := range ids {
		v, err := c.Get(id)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Has reports whether id is registered, resolved or not.
func (c *Container) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[c.canonical(id)]
	return ok
}

// Resolved reports whether the entry under id already holds a value.
func (c *Container) Resolved(id string) bool {
	c.mu.RLock()
	key := c.canonical(id)
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if err := c.lockEntry(key, e); err != nil {
		return false
	}
	defer e.mu.Unlock()
	return e.resolved
}

// Reset removes the entry under id. Absent ids are ignored.
func (c *Container) Reset(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, c.canonical(id))
}

// lookup returns the current entry under id, or nil.
func (c *Container) lookup(id string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[c.canonical(id)]
}

// Canonical resolves an alias to the id its entry is stored under.
func (c *Container) Canonical(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.canonical(id)
}

// canonical resolves an alias to its canonical id (caller holds mu).
func (c *Container) canonical(id string) string {
	if target, ok := c.aliases[id]; ok {
		return target
	}
	return id
}

// ── Resolution tracking ───────────────────────────────────────────────────────

func (c *Container) enter(g uint64, key string) {
	c.resolvingMu.Lock()
	defer c.resolvingMu.Unlock()
	c.resolving[g] = append(c.resolving[g], key)
}

func (c *Container) leave(g uint64) {
	c.resolvingMu.Lock()
	defer c.resolvingMu.Unlock()
	ids := c.resolving[g]
	if len(ids) <= 1 {
		delete(c.resolving, g)
		return
	}
	c.resolving[g] = ids[:len(ids)-1]
}

// cycle reports whether goroutine g is already running the factory of key,
// and returns the chain from that factory back to key.
func (c *Container) cycle(g uint64, key string) ([]string, bool) {
	c.resolvingMu.Lock()
	defer c.resolvingMu.Unlock()
	ids := c.resolving[g]
	for i, id := range ids {
		if id == key {
			chain := append(append([]string(nil), ids[i:]...), key)
			return chain, true
		}
	}
	return nil, false
}

// goroutineID parses the calling goroutine's id from its stack header,
// "goroutine 42 [running]:". It is only read when a factory runs or an
// entry is busy.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// ── Type keys ─────────────────────────────────────────────────────────────────

// TypeKey returns the package-qualified type name of v, with pointers
// stripped. Pass a typed nil pointer for interfaces.
//
//	key := container.TypeKey((*Logger)(nil))  // "example.com/app.Logger"
//	c.Set(key, factory)
func TypeKey(v any) string {
	return KeyOf(reflect.TypeOf(v))
}

// KeyOf is TypeKey for a reflect.Type.
func KeyOf(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve fetches id and asserts it to T.
//
//	router, err := container.Resolve[*routing.Router](c, "router")
func Resolve[T any](c Getter, id string) (T, error) {
	var zero T
	instance, err := c.Get(id)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, errContainer(id, "resolved to %T, want %T", instance, zero)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure. Use it in bootstrap code.
func MustResolve[T any](c Getter, id string) T {
	typed, err := Resolve[T](c, id)
	if err != nil {
		panic(err)
	}
	return typed
}
