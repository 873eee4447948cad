package routing

// Params are the values captured by a route pattern, in placeholder order.
type Params struct {
	names  []string
	values []string
}

// NewParams pairs names with values by position.
func NewParams(names, values []string) Params {
	return Params{names: names, values: values}
}

// Get returns the value captured for name, or "". When a name repeats in
// a pattern the last capture wins.
func (p Params) Get(name string) string {
	v, _ := p.Lookup(name)
	return v
}

// Lookup is Get with a presence flag.
func (p Params) Lookup(name string) (string, bool) {
	for i := len(p.names) - 1; i >= 0; i-- {
		if p.names[i] == name && i < len(p.values) {
			return p.values[i], true
		}
	}
	return "", false
}

// Names returns the placeholder names in order of appearance.
func (p Params) Names() []string { return p.names }

// Values returns the captured values in order of appearance.
func (p Params) Values() []string { return p.values }

// Len returns the number of captures.
func (p Params) Len() int { return len(p.values) }

// Map returns the captures keyed by placeholder name.
func (p Params) Map() map[string]string {
	out := make(map[string]string, len(p.names))
	for i, name := range p.names {
		if i < len(p.values) {
			out[name] = p.values[i]
		}
	}
	return out
}
