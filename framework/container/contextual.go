package container

// ContextualFactory produces a contextual parameter value at build time.
type ContextualFactory func(a *AutoResolvingContainer) (any, error)

// ContextualBuilder implements the fluent contextual binding API. A
// contextual value is used for a constructor parameter of one class when
// the Make call supplies no explicit value for it.
//
//	ac.When(container.TypeKey((*PhotoController)(nil))).
//	    Needs("storagePath").
//	    GiveValue("/tmp/photos")
type ContextualBuilder struct {
	container *AutoResolvingContainer
	class     string
	needs     string
}

// When starts a contextual binding chain for class.
func (a *AutoResolvingContainer) When(class string) *ContextualBuilder {
	return &ContextualBuilder{container: a, class: class}
}

// Needs names the constructor parameter the binding applies to.
func (b *ContextualBuilder) Needs(param string) *ContextualBuilder {
	b.needs = param
	return b
}

// Give binds a factory that runs each time the class is built.
func (b *ContextualBuilder) Give(factory ContextualFactory) {
	b.store(factory)
}

// GiveValue binds a fixed value.
func (b *ContextualBuilder) GiveValue(value any) {
	b.store(value)
}

func (b *ContextualBuilder) store(v any) {
	a := b.container
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.contextual[b.class]; !ok {
		a.contextual[b.class] = make(map[string]any)
	}
	a.contextual[b.class][b.needs] = v
}

// contextualValue returns the value bound for (class, param), running a
// factory binding if needed.
func (a *AutoResolvingContainer) contextualValue(class, param string) (any, bool, error) {
	a.mu.RLock()
	v, ok := a.contextual[class][param]
	a.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	f, isFactory := v.(ContextualFactory)
	if !isFactory {
		return v, true, nil
	}
	built, err := f(a)
	if err != nil {
		return nil, false, wrapContainer(class, err, "contextual value for '%s' failed", param)
	}
	return built, true, nil
}
