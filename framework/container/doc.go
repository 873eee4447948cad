// Package container provides the service container and its autowiring
// decorator.
//
// # Container
//
// Container is a lazy service locator. Entries are values or factories;
// a factory runs on the first Get and its result replaces it.
//
//	c := container.New()
//	c.Set("config", cfg)
//	c.Set("router", func(c *container.Container) (any, error) {
//	    return routing.New(), nil
//	})
//
//	router, err := container.Resolve[*routing.Router](c, "router")
//
// Reset removes an entry; the next Get fails with ErrServiceNotFound.
//
// # AutoResolvingContainer
//
// AutoResolvingContainer wraps a Container and builds types through their
// constructors. Go has no runtime access to parameter names or default
// values, so constructors are registered with their parameter metadata:
//
//	ac := container.NewAutoResolving(c)
//	ac.MustProvide(NewUserService,
//	    container.Named("repo"),
//	    container.Optional("logger"),
//	    container.Default("pageSize", 20),
//	)
//
//	svc, err := container.Build[*UserService](ac)
//
// Each parameter is resolved in this order:
//
//  1. an explicit value by name (WithArg)
//  2. an explicit value by position (WithArgAt)
//  3. a contextual binding (When().Needs().Give())
//  4. for interface and *struct parameters: the service registered under
//     the type key, else nil when the parameter is Optional, else a
//     recursive build when the type is concrete, else ErrServiceNotFound
//  5. for other parameters: the Default, else the zero value when
//     Optional, else an ErrContainer "cannot autowire" error
//
// Pointer-to-struct types without a registered constructor are built as
// zero values. Interfaces cannot be built. A constructor chain that loops
// fails with a *CircularDependencyError listing the chain.
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.AutoResolvingContainer) error {
//	    return app.Provide(NewMailer)
//	}
//
//	registry := container.NewProviderRegistry(ac)
//	_ = registry.Register(&AppServiceProvider{})
//	_ = registry.Boot()
//
// A deferred provider (IsDeferred true) registers on the first Get of one
// of its Provides() ids.
package container
