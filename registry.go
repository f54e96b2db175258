package streamgraph

import (
	"sync"

	"gopkg.in/yaml.v3"
)

// FactoryDecoder turns a component config's type-specific YAML fields (the
// node sitting alongside the "type" and "input" keys) into a
// ComponentFactory. Registered decoders own their own field layout; the
// registry itself never inspects the node beyond handing it over.
type FactoryDecoder func(raw *yaml.Node) (ComponentFactory, error)

// FactoryRegistry is the open, string-keyed table a component config's
// "type" discriminant is dispatched through: any host can register
// additional factory types at init time without this package knowing
// about them.
type FactoryRegistry struct {
	mu       sync.RWMutex
	decoders map[Name]FactoryDecoder
}

// NewFactoryRegistry returns an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{decoders: make(map[Name]FactoryDecoder)}
}

// Register binds typeName to dec. It returns a DuplicateFactoryTypeError if
// typeName is already bound — the registry is open to new entries, not to
// silent replacement of existing ones.
func (r *FactoryRegistry) Register(typeName Name, dec FactoryDecoder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[typeName]; exists {
		return &DuplicateFactoryTypeError{Type: typeName}
	}
	r.decoders[typeName] = dec
	return nil
}

// MustRegister is Register, panicking on a duplicate type name. Intended
// for package-level init() calls wiring in well-known factories, where a
// collision is a programming error rather than a runtime condition.
func (r *FactoryRegistry) MustRegister(typeName Name, dec FactoryDecoder) {
	if err := r.Register(typeName, dec); err != nil {
		panic(err)
	}
}

// Types returns every registered type name, for diagnostics.
func (r *FactoryRegistry) Types() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Name, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	return out
}

// Build resolves typeName to a registered decoder, decodes raw into a
// ComponentFactory, and builds the named Component from it.
func (r *FactoryRegistry) Build(name Name, typeName Name, raw *yaml.Node) (Component, error) {
	r.mu.RLock()
	dec, ok := r.decoders[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownFactoryTypeError{Type: typeName}
	}
	factory, err := dec(raw)
	if err != nil {
		return nil, err
	}
	return factory.Build(name)
}
