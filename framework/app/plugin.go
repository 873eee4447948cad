package app

import (
	"errors"
	"fmt"

	"github.com/km-arc/go-nix/framework/container"
)

// ErrPluginNotFound is returned by Plugin for an unknown name.
var ErrPluginNotFound = errors.New("plugin not found")

// Plugin is a named ServiceProvider shipped outside the application, e.g. a
// blog or an admin panel. Its Register adds services; its Boot typically
// adds routes and listeners.
//
//	type BlogPlugin struct{ container.BaseProvider }
//
//	func (*BlogPlugin) Name() string { return "blog" }
//	func (*BlogPlugin) Register(app *container.AutoResolvingContainer) error { ... }
type Plugin interface {
	container.ServiceProvider
	Name() string
}

// Use adds plugins. They are registered during Boot, in the order given by
// the plugins list of the configuration, then in the order of Use.
func (a *Application) Use(plugins ...Plugin) error {
	if a.Providers.Booted() {
		return errors.New("app: plugins must be added before Boot")
	}
	for _, p := range plugins {
		name := p.Name()
		if _, dup := a.pending[name]; dup {
			return fmt.Errorf("app: plugin '%s' added twice", name)
		}
		a.pending[name] = p
		a.order = append(a.order, name)
	}
	return nil
}

// loadPlugins registers the pending plugins in their final order.
func (a *Application) loadPlugins(configured []string) error {
	for _, p := range orderPlugins(configured, a.order, a.pending) {
		if err := a.Providers.Register(p); err != nil {
			return fmt.Errorf("app: plugin '%s': %w", p.Name(), err)
		}
		a.plugins = append(a.plugins, p)
	}
	return nil
}

// orderPlugins puts the configured names first, skipping unknown and
// repeated ones, then every remaining plugin in the order it was added.
func orderPlugins(configured, added []string, byName map[string]Plugin) []Plugin {
	out := make([]Plugin, 0, len(added))
	seen := make(map[string]bool, len(added))
	for _, names := range [][]string{configured, added} {
		for _, name := range names {
			p, ok := byName[name]
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, p)
		}
	}
	return out
}

// Plugins returns the registered plugins in boot order.
func (a *Application) Plugins() []Plugin {
	return append([]Plugin(nil), a.plugins...)
}

// HasPlugin reports whether a plugin called name was registered.
func (a *Application) HasPlugin(name string) bool {
	_, err := a.Plugin(name)
	return err == nil
}

// Plugin returns the registered plugin called name.
func (a *Application) Plugin(name string) (Plugin, error) {
	for _, p := range a.plugins {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("app: '%s': %w", name, ErrPluginNotFound)
}
