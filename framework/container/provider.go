package container

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the registrations of one subsystem.
//
// Register runs first, for every provider. Boot runs once all providers are
// registered, so it is safe to resolve other services there.
//
//	type MailServiceProvider struct{ container.BaseProvider }
//
//	func (p *MailServiceProvider) Register(app *container.AutoResolvingContainer) error {
//	    app.Set("mailer", func(c *container.Container) (any, error) {
//	        return mail.New(), nil
//	    })
//	    return nil
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other bindings here; use Boot for that.
	Register(app *AutoResolvingContainer) error

	// Boot is called after all providers are registered.
	Boot(app *AutoResolvingContainer) error

	// Provides lists the ids a deferred provider registers.
	Provides() []string

	// IsDeferred reports whether Register should wait until one of the
	// Provides() ids is first resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot, Provides and
// IsDeferred. Embed it and implement Register.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *AutoResolvingContainer) error { return nil }
func (p *BaseProvider) Provides() []string                   { return nil }
func (p *BaseProvider) IsDeferred() bool                     { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots ServiceProviders, including deferred ones.
// It is used during single-threaded startup only.
type ProviderRegistry struct {
	app        *AutoResolvingContainer
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider // id → provider
	booted     bool
	registered map[ServiceProvider]bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *AutoResolvingContainer) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		deferred:   make(map[string]ServiceProvider),
		registered: make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register method unless it is
// deferred. Registering the same provider twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, id := range provider.Provides() {
			r.deferred[id] = provider
		}
		r.interceptDeferred(provider)
		return nil
	}

	if err := provider.Register(r.app); err != nil {
		return err
	}
	r.eager = append(r.eager, provider)

	if r.booted {
		return provider.Boot(r.app)
	}
	return nil
}

// interceptDeferred installs a placeholder factory for each deferred id.
// The first Get registers the provider for real and resolves again.
func (r *ProviderRegistry) interceptDeferred(provider ServiceProvider) {
	for _, id := range provider.Provides() {
		var placeholder *entry
		r.app.Set(id, func(c *Container) (any, error) {
			if _, pending := r.deferred[id]; pending {
				for _, provided := range provider.Provides() {
					delete(r.deferred, provided)
				}
				if err := provider.Register(r.app); err != nil {
					return nil, err
				}
				if r.booted {
					if err := provider.Boot(r.app); err != nil {
						return nil, err
					}
				}
			}
			if c.lookup(id) == placeholder {
				return nil, errContainer(id, "deferred provider did not register '%s'", id)
			}
			return c.Get(id)
		})
		placeholder = r.app.container.lookup(id)
	}
}

// Boot calls Boot on every eager provider, once.
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, provider := range r.eager {
		if err := provider.Boot(r.app); err != nil {
			return err
		}
	}
	return nil
}

// Booted reports whether Boot has run.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns the eager providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.eager }
