package streamgraph

import (
	"fmt"

	"github.com/zoobzio/capitan"
	"gopkg.in/yaml.v3"
)

// DebugComponent logs its single input at info level when Noisy is set
// (and silently drops it otherwise) and produces no output: a Primary sink
// used to observe a channel's traffic without wiring a real consumer.
type DebugComponent struct {
	BaseComponent
	Name  Name
	Noisy bool
}

func (c *DebugComponent) Inputs() InputKind { return InputsPrimary() }

func (c *DebugComponent) OutputKind(Name) OutputKind { return OutputNone }

func (c *DebugComponent) Run(ctx *Context) error {
	v, ok := ctx.Get("")
	if !ok {
		return nil
	}
	if !c.Noisy {
		return nil
	}
	capitan.Info(ctx.Context(), SignalDebugComponent,
		FieldComponent.Field(c.Name),
		FieldRunID.Field(ctx.RunID().String()),
		FieldValue.Field(fmt.Sprintf("%s=%v", v.TypeName(), v)),
	)
	return nil
}

// debugConfig is the YAML shape the "debug" factory decodes: a single
// `noisy` field, defaulting true.
type debugConfig struct {
	Noisy *bool `yaml:"noisy"`
}

// DebugFactory builds a DebugComponent. Registered under the type name
// "debug".
type DebugFactory struct {
	Noisy bool
}

func (f DebugFactory) Build(name Name) (Component, error) {
	return &DebugComponent{Name: name, Noisy: f.Noisy}, nil
}

func decodeDebugFactory(raw *yaml.Node) (ComponentFactory, error) {
	var cfg debugConfig
	if raw != nil && raw.Kind != 0 {
		if err := raw.Decode(&cfg); err != nil {
			return nil, err
		}
	}
	noisy := true
	if cfg.Noisy != nil {
		noisy = *cfg.Noisy
	}
	return DebugFactory{Noisy: noisy}, nil
}

// PassthroughComponent re-emits its single input unchanged: a component
// whose whole job is to stand in for another link in the chain.
type PassthroughComponent struct {
	BaseComponent
}

func (c *PassthroughComponent) Inputs() InputKind { return InputsPrimary() }

func (c *PassthroughComponent) OutputKind(name Name) OutputKind {
	if name == "" {
		return OutputSingle
	}
	return OutputNone
}

func (c *PassthroughComponent) Run(ctx *Context) error {
	v, ok := ctx.Get("")
	if !ok {
		return nil
	}
	if ctx.Listeners("") == 0 {
		return nil
	}
	return ctx.Submit("", v)
}

// PassthroughFactory builds a PassthroughComponent. Registered under the
// type name "passthrough".
type PassthroughFactory struct{}

func (PassthroughFactory) Build(Name) (Component, error) {
	return &PassthroughComponent{}, nil
}

func decodePassthroughFactory(*yaml.Node) (ComponentFactory, error) {
	return PassthroughFactory{}, nil
}

// CollectComponent is a MinTree{"ref","elem"} join that flattens a
// fan-out back into one value: "ref" anchors the aggregation at the
// branch point it rides in on, and every "elem" bound anywhere below is
// gathered into a single slice. Two Single outputs: "" carries the
// collected slice, "sorted" carries it ordered by run id. AllValues
// already walks branch children in ordinal order, so both channels see
// the same run-id ordering here; "sorted" is kept as a distinct channel
// for wiring that wants the ordering guarantee by name.
type CollectComponent struct {
	BaseComponent
}

func (c *CollectComponent) Inputs() InputKind { return InputsMinTree("ref", "elem") }

func (c *CollectComponent) OutputKind(name Name) OutputKind {
	switch name {
	case "", "sorted":
		return OutputSingle
	default:
		return OutputNone
	}
}

func (c *CollectComponent) Run(ctx *Context) error {
	tree := ctx.Tree()
	if tree == nil {
		return nil
	}
	if ctx.Listeners("sorted") > 0 {
		if err := ctx.Submit("sorted", NewValue("sorted", tree.AllValues("elem"))); err != nil {
			return err
		}
	}
	if ctx.Listeners("") > 0 {
		return ctx.Submit("", NewValue("collected", tree.AllValues("elem")))
	}
	return nil
}

// CollectFactory builds a CollectComponent. Registered under the type name
// "collect".
type CollectFactory struct{}

func (CollectFactory) Build(Name) (Component, error) {
	return &CollectComponent{}, nil
}

func decodeCollectFactory(*yaml.Node) (ComponentFactory, error) {
	return CollectFactory{}, nil
}

// DefaultRegistry returns a FactoryRegistry with the engine's built-in,
// domain-neutral component types pre-registered: "debug", "passthrough",
// and "collect". A host wires in its own domain factories (camera
// sources, CV filters, and the like) on top of this with Register.
func DefaultRegistry() *FactoryRegistry {
	reg := NewFactoryRegistry()
	reg.MustRegister("debug", decodeDebugFactory)
	reg.MustRegister("passthrough", decodePassthroughFactory)
	reg.MustRegister("collect", decodeCollectFactory)
	return reg
}
