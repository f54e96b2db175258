package streamgraph

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// InputSpec is a component config's "input" field, which takes one of four
// shapes: absent (no input), a bare "source.channel" string, a list of
// such strings, or a channel-name to reference-list mapping. UnmarshalYAML
// dispatches on the node's kind.
type InputSpec struct {
	Single Name
	List   []Name
	Named  map[Name][]Name
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *InputSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case 0:
		return nil
	case yaml.ScalarNode:
		return node.Decode(&s.Single)
	case yaml.SequenceNode:
		return node.Decode(&s.List)
	case yaml.MappingNode:
		var raw map[Name]yaml.Node
		if err := node.Decode(&raw); err != nil {
			return err
		}
		s.Named = make(map[Name][]Name, len(raw))
		for k := range raw {
			v := raw[k]
			switch v.Kind {
			case yaml.ScalarNode:
				var one Name
				if err := v.Decode(&one); err != nil {
					return err
				}
				s.Named[k] = []Name{one}
			case yaml.SequenceNode:
				var many []Name
				if err := v.Decode(&many); err != nil {
					return err
				}
				s.Named[k] = many
			default:
				return fmt.Errorf("streamgraph: input mapping value for %q must be a string or a list", k)
			}
		}
		return nil
	default:
		return fmt.Errorf("streamgraph: unsupported input spec shape")
	}
}

func (s InputSpec) isEmpty() bool {
	return s.Single == "" && len(s.List) == 0 && len(s.Named) == 0
}

// ComponentConfig is one entry of the "components" section: the factory
// type discriminant, the input wiring, and every type-specific field a
// registered FactoryDecoder reads from Raw.
type ComponentConfig struct {
	Type  Name
	Input InputSpec
	Raw   yaml.Node
}

// UnmarshalYAML implements yaml.Unmarshaler. It keeps the whole node in Raw
// (for the factory decoder) while also pulling the "type"/"input" keys
// every config shares.
func (c *ComponentConfig) UnmarshalYAML(node *yaml.Node) error {
	c.Raw = *node
	var header struct {
		Type  Name      `yaml:"type"`
		Input InputSpec `yaml:"input"`
	}
	if err := node.Decode(&header); err != nil {
		return err
	}
	c.Type = header.Type
	c.Input = header.Input
	return nil
}

// PipelineConfig is the top-level configuration document. Components is
// what this package turns into a Graph; Cameras, NTable, and Config are
// opaque passthroughs for a host's own camera and network-table
// collaborators — this package validates their shape as YAML but never
// interprets them, matching the non-goal that CV/camera/ntable concerns
// stay out of the engine core.
type PipelineConfig struct {
	Components map[Name]ComponentConfig `yaml:"components"`
	Cameras    yaml.Node                `yaml:"cameras"`
	NTable     yaml.Node                `yaml:"ntable"`
	Config     yaml.Node                `yaml:"config"`
}

// LoadPipelineConfig parses a pipeline configuration document.
func LoadPipelineConfig(data []byte) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BuildGraph constructs every component named in cfg.Components through
// reg, wires their declared inputs, and returns the resulting Graph. Names
// are visited in sorted order so a given config always produces the same
// RunnerComponentID assignment on Compile, independent of map iteration
// order.
func BuildGraph(cfg *PipelineConfig, reg *FactoryRegistry) (*Graph, error) {
	g := NewGraph()

	names := make([]Name, 0, len(cfg.Components))
	for name := range cfg.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	built := make(map[Name]Component, len(names))
	for _, name := range names {
		cc := cfg.Components[name]
		component, err := reg.Build(name, cc.Type, &cc.Raw)
		if err != nil {
			return nil, err
		}
		if _, err := g.AddNamed(name, component); err != nil {
			return nil, err
		}
		built[name] = component
	}

	for _, name := range names {
		if err := wireInputs(g, name, built[name], cfg.Components[name].Input); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// wireInputs wires one component's declared input spec. The bare-list
// shape has no channel names of its own, so it zips positionally against
// the destination's declared Inputs().Slots (Named/MinTree/FullTree); for
// a Primary destination a one-element list is equivalent to the single
// string form.
func wireInputs(g *Graph, dst Name, component Component, spec InputSpec) error {
	switch {
	case spec.isEmpty():
		return nil
	case spec.Single != "":
		return wireOne(g, dst, "", spec.Single)
	case len(spec.List) > 0:
		slots := component.Inputs().Slots
		if len(slots) == 0 {
			if len(spec.List) != 1 {
				return &InvalidInputSpecError{Component: dst, Detail: "a Primary component accepts at most one input reference"}
			}
			return wireOne(g, dst, "", spec.List[0])
		}
		if len(spec.List) != len(slots) {
			return &InvalidInputSpecError{
				Component: dst,
				Detail:    fmt.Sprintf("list has %d entries but component declares %d named slots", len(spec.List), len(slots)),
			}
		}
		for i, ref := range spec.List {
			if err := wireOne(g, dst, slots[i], ref); err != nil {
				return err
			}
		}
		return nil
	default:
		for channel, refs := range spec.Named {
			for _, ref := range refs {
				if err := wireOne(g, dst, channel, ref); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func wireOne(g *Graph, dst Name, dstChannel Name, ref Name) error {
	srcName, srcChannel, err := splitEndpointRef(ref)
	if err != nil {
		return err
	}
	return g.AddDependency(
		Endpoint{Name: srcName, Channel: srcChannel},
		Endpoint{Name: dst, Channel: dstChannel},
	)
}

// splitEndpointRef splits a "source.channel" reference into its component
// and channel halves. A bare "source." denotes the source's anonymous
// default channel; a ref with no dot at all is rejected since a reference
// always pairs a source with the channel it emits on.
func splitEndpointRef(ref string) (src Name, channel Name, err error) {
	idx := strings.IndexByte(ref, '.')
	if idx < 0 {
		return "", "", &MalformedEndpointRefError{Ref: ref}
	}
	return ref[:idx], ref[idx+1:], nil
}
