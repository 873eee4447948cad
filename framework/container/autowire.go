package container

import (
	"errors"
	"reflect"
	"sync"
)

// ── Make options ──────────────────────────────────────────────────────────────

// MakeOption configures a single Make call.
type MakeOption func(*makeOptions)

type makeOptions struct {
	named      map[string]any
	positional map[int]any
	singleton  bool
}

// WithArg supplies the constructor parameter called name.
func WithArg(name string, value any) MakeOption {
	return func(o *makeOptions) {
		if o.named == nil {
			o.named = make(map[string]any)
		}
		o.named[name] = value
	}
}

// WithArgAt supplies the constructor parameter at position i.
func WithArgAt(i int, value any) MakeOption {
	return func(o *makeOptions) {
		if o.positional == nil {
			o.positional = make(map[int]any)
		}
		o.positional[i] = value
	}
}

// AsSingleton stores the built instance and returns it on later singleton makes.
func AsSingleton() MakeOption {
	return func(o *makeOptions) { o.singleton = true }
}

// ── AutoResolvingContainer ────────────────────────────────────────────────────

// AutoResolvingContainer decorates a Container with constructor injection.
//
// Get never autowires; only Make (and MakeType, Build) do. Resolved services
// are cached in the decorator as well as in the wrapped container.
type AutoResolvingContainer struct {
	container *Container

	mu         sync.RWMutex
	instances  map[string]any
	keyLocks   map[string]*sync.Mutex
	contextual map[string]map[string]any

	reflection *reflectionCache
}

// NewAutoResolving wraps c.
func NewAutoResolving(c *Container) *AutoResolvingContainer {
	return &AutoResolvingContainer{
		container:  c,
		instances:  make(map[string]any),
		keyLocks:   make(map[string]*sync.Mutex),
		contextual: make(map[string]map[string]any),
		reflection: newReflectionCache(),
	}
}

// Base returns the wrapped container.
func (a *AutoResolvingContainer) Base() *Container { return a.container }

// Get returns a service from the decorator cache or the wrapped container.
// Aliases share one cache slot with the id they point to.
func (a *AutoResolvingContainer) Get(id string) (any, error) {
	key := a.container.Canonical(id)

	a.mu.RLock()
	instance, ok := a.instances[key]
	a.mu.RUnlock()
	if ok {
		return instance, nil
	}

	if !a.container.Has(key) {
		return nil, errNotFound(id)
	}

	instance, err := a.container.Get(key)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.instances[key] = instance
	a.mu.Unlock()
	return instance, nil
}

// Set registers a service in the wrapped container and drops any cached instance.
func (a *AutoResolvingContainer) Set(id string, factoryOrValue any) {
	a.container.Set(id, factoryOrValue)

	key := a.container.Canonical(id)
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.instances, key)
}

// Has reports whether id is cached here or registered in the wrapped container.
func (a *AutoResolvingContainer) Has(id string) bool {
	key := a.container.Canonical(id)
	a.mu.RLock()
	_, ok := a.instances[key]
	a.mu.RUnlock()
	return ok || a.container.Has(key)
}

// Reset removes id from the decorator cache and the wrapped container.
func (a *AutoResolvingContainer) Reset(id string) {
	key := a.container.Canonical(id)
	a.mu.Lock()
	delete(a.instances, key)
	a.mu.Unlock()
	a.container.Reset(key)
}

// Provide registers a constructor for the type it returns. Supported shapes:
//
//	func() *T
//	func(Dep1, Dep2, ...) *T
//	func(Dep1, Dep2, ...) (*T, error)
//
// params describe the constructor arguments by position:
//
//	ac.Provide(NewMailer,
//	    container.Named("transport"),
//	    container.Optional("logger"),
//	    container.Default("retries", 3),
//	)
func (a *AutoResolvingContainer) Provide(constructor any, params ...Param) error {
	_, err := a.reflection.register(constructor, params)
	return err
}

// MustProvide is like Provide but panics on an invalid constructor.
func (a *AutoResolvingContainer) MustProvide(constructor any, params ...Param) {
	if err := a.Provide(constructor, params...); err != nil {
		panic(err)
	}
}

// Make builds class through constructor injection. class is a type key as
// returned by TypeKey.
func (a *AutoResolvingContainer) Make(class string, opts ...MakeOption) (any, error) {
	var o makeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return a.make(&buildChain{}, class, o)
}

// MakeType is Make for a reflect.Type. Pointer-to-struct types need no
// prior registration.
func (a *AutoResolvingContainer) MakeType(t reflect.Type, opts ...MakeOption) (any, error) {
	key := KeyOf(t)
	a.reflection.learn(key, t)
	return a.Make(key, opts...)
}

// Build makes an instance of the handler type t. It satisfies action.Builder.
func (a *AutoResolvingContainer) Build(t reflect.Type) (any, error) {
	return a.MakeType(t)
}

// Build is the generic form of MakeType.
//
//	svc, err := container.Build[*UserService](ac)
func Build[T any](a *AutoResolvingContainer, opts ...MakeOption) (T, error) {
	var zero T
	instance, err := a.MakeType(reflect.TypeOf((*T)(nil)).Elem(), opts...)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, errContainer(KeyOf(reflect.TypeOf((*T)(nil)).Elem()), "built %T, want %T", instance, zero)
	}
	return typed, nil
}

// buildChain is the recursion guard of one top-level Make: the keys
// currently under construction, in order.
type buildChain struct {
	keys []string
}

func (b *buildChain) contains(key string) bool {
	for _, k := range b.keys {
		if k == key {
			return true
		}
	}
	return false
}

func (a *AutoResolvingContainer) make(chain *buildChain, class string, o makeOptions) (any, error) {
	if o.singleton {
		if instance, ok := a.cached(class); ok {
			return instance, nil
		}
	}

	if chain.contains(class) {
		cycle := append(append([]string(nil), chain.keys...), class)
		return nil, &CircularDependencyError{Chain: cycle}
	}

	chain.keys = append(chain.keys, class)
	defer func() { chain.keys = chain.keys[:len(chain.keys)-1] }()

	if o.singleton {
		lock := a.keyLock(class)
		lock.Lock()
		defer lock.Unlock()
		if instance, ok := a.cached(class); ok {
			return instance, nil
		}
	}

	info, err := a.reflection.get(class)
	if err != nil {
		return nil, err
	}
	if !info.instantiable {
		return nil, errContainer(class, "class '%s' is not instantiable", class)
	}

	var args []reflect.Value
	if len(info.params) > 0 {
		args, err = a.resolveParameters(chain, info, o)
		if err != nil {
			return nil, err
		}
	}

	instance, err := info.construct(args)
	if err != nil {
		return nil, err
	}

	if o.singleton {
		a.container.Set(class, instance)
		key := a.container.Canonical(class)
		a.mu.Lock()
		a.instances[key] = instance
		a.mu.Unlock()
	}

	return instance, nil
}

// resolveParameters resolves every constructor argument in priority order:
// by name, by position, contextual binding, container lookup, nil for
// nullable parameters, recursive build of concrete types.
func (a *AutoResolvingContainer) resolveParameters(chain *buildChain, info *classInfo, o makeOptions) ([]reflect.Value, error) {
	args := make([]reflect.Value, 0, len(info.params))

	for i, p := range info.params {
		if v, ok := o.named[p.Name]; ok {
			arg, err := argument(info.key, p, v)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}

		if v, ok := o.positional[i]; ok {
			arg, err := argument(info.key, p, v)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}

		if v, ok, err := a.contextualValue(info.key, p.Name); err != nil {
			return nil, err
		} else if ok {
			arg, err := argument(info.key, p, v)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}

		if !p.class {
			arg, err := resolveScalar(info.key, p)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}

		dep, err := a.Get(p.key)
		if err == nil {
			arg, err := argument(info.key, p, dep)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}
		if !isMissing(err) {
			return nil, err
		}

		if p.Nullable {
			args = append(args, reflect.Zero(p.typ))
			continue
		}

		if a.reflection.instantiable(p.key) {
			dep, err := a.make(chain, p.key, makeOptions{})
			if err != nil {
				return nil, err
			}
			arg, err := argument(info.key, p, dep)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}

		return nil, &NotFoundError{ID: p.key, Param: p.Name, Context: info.key, Cause: err}
	}

	return args, nil
}

// resolveScalar handles parameters that are not services.
func resolveScalar(class string, p paramInfo) (reflect.Value, error) {
	if p.HasDefault {
		return argument(class, p, p.Default)
	}
	if p.Nullable {
		return reflect.Zero(p.typ), nil
	}
	return reflect.Value{}, errContainer(class,
		"cannot autowire parameter '%s' in '%s' (no class type and no default value)", p.Name, class)
}

func (a *AutoResolvingContainer) cached(class string) (any, bool) {
	key := a.container.Canonical(class)
	a.mu.RLock()
	defer a.mu.RUnlock()
	instance, ok := a.instances[key]
	return instance, ok
}

func (a *AutoResolvingContainer) keyLock(class string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.keyLocks[class]
	if !ok {
		l = &sync.Mutex{}
		a.keyLocks[class] = l
	}
	return l
}

// isMissing separates "nothing registered" from a registered service whose
// factory failed.
func isMissing(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && !errors.Is(err, ErrContainer)
}
