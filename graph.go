package streamgraph

import "sync"

// Endpoint names a component and, optionally, a channel on it. An empty
// Channel means "the default/anonymous channel" — the single output of a
// component, or a Primary input. Component may be left zero and Name used
// instead to resolve by the graph's lookup table.
type Endpoint struct {
	Component ComponentID
	Name      Name
	Channel   Name
}

func (e Endpoint) byName() bool { return e.Name != "" }

// edgeRef is one endpoint of a wired dependency: the source component and
// the channel it emits the value on.
type edgeRef struct {
	Src     ComponentID
	Channel Name
}

// dependent is one entry of a source channel's fan-out list: who listens,
// on which of their input slots, and whether this edge is branch-preserving
// (pushes a fresh RunID ordinal — i.e. the source channel has OutputKind
// Multiple).
type dependent struct {
	Dst        ComponentID
	DstChannel Name
	Multi      bool
}

// graphNode is the editable, graph-side record for one component. Slot
// wiring is resolved into a componentData only at Compile time.
type graphNode struct {
	component   Component
	name        Name
	placeholder bool
	inLookup    bool

	kind InputKind
	// primarySrc is set for InputPrimary components once wired.
	primarySrc *edgeRef
	// slotSrcs holds, for Named/MinTree/FullTree components, the wired
	// sources for each named slot (declared or dynamically accepted via
	// CanTake). MinTree/FullTree slots may hold more than one source
	// (oversaturation); Named/Primary may not.
	slotSrcs map[Name][]edgeRef
	// slotOrder preserves first-seen order of dynamically accepted slots
	// appended beyond the declared Slots, for deterministic compilation.
	slotOrder []Name

	// outputs maps a channel name to the ordered list of dependents,
	// in the order AddDependency was called (tie-break: insertion order).
	outputs map[Name][]dependent
}

func (n *graphNode) hasSlot(name Name) bool {
	if n.slotSrcs == nil {
		return false
	}
	_, ok := n.slotSrcs[name]
	return ok
}

// Graph is an editable DAG of components connected by named channels. Call
// Compile to validate the graph and produce an immutable Runner.
type Graph struct {
	mu         sync.Mutex
	components []*graphNode
	lookup     map[Name]ComponentID
	firstFree  int
}

// NewGraph creates an empty pipeline graph.
func NewGraph() *Graph {
	return &Graph{lookup: make(map[Name]ComponentID)}
}

func placeholderNode() *graphNode {
	return &graphNode{placeholder: true, name: "<placeholder>"}
}

// AddNamed inserts component under name, publishing it in the graph's
// lookup table so it can be referenced by Endpoint{Name: name}. Returns
// DuplicateNameError if the name is already taken.
func (g *Graph) AddNamed(name Name, component Component) (ComponentID, error) {
	g.mu.Lock()
	if existing, ok := g.lookup[name]; ok {
		g.mu.Unlock()
		return ComponentID{}, &DuplicateNameError{Name: name, Existing: existing}
	}
	id := g.insertLocked(component, name, true)
	g.lookup[name] = id
	g.mu.Unlock()
	component.Initialize(g, id)
	return id, nil
}

// AddHidden inserts component with a debug name but without publishing it
// to the lookup table. Hidden components can still be wired by id and
// participate in dependencies normally; they're useful for internally
// generated components that shouldn't be user-addressable.
func (g *Graph) AddHidden(name Name, component Component) ComponentID {
	g.mu.Lock()
	id := g.insertLocked(component, name, false)
	g.mu.Unlock()
	component.Initialize(g, id)
	return id
}

func (g *Graph) insertLocked(component Component, name Name, inLookup bool) ComponentID {
	kind := component.Inputs()
	node := &graphNode{
		component: component,
		name:      name,
		inLookup:  inLookup,
		kind:      kind,
		outputs:   make(map[Name][]dependent),
	}
	if kind.Tag != InputPrimary {
		node.slotSrcs = make(map[Name][]edgeRef, len(kind.Slots))
		for _, s := range kind.Slots {
			node.slotSrcs[s] = nil
		}
	}

	idx := g.firstFree
	id := NewComponentID(idx)
	if idx == len(g.components) {
		g.components = append(g.components, node)
		g.firstFree++
	} else {
		g.components[idx] = node
		g.firstFree = len(g.components)
		for i := idx + 1; i < len(g.components); i++ {
			if g.components[i].placeholder {
				g.firstFree = i
				break
			}
		}
	}
	return id
}

// Lookup resolves a published name to its ComponentID.
func (g *Graph) Lookup(name Name) (ComponentID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.lookup[name]
	return id, ok
}

func (g *Graph) resolveEndpoint(e Endpoint, side string) (ComponentID, error) {
	if e.byName() {
		id, ok := g.lookup[e.Name]
		if !ok {
			return ComponentID{}, &MissingEndpointError{Side: side, Name: e.Name}
		}
		return id, nil
	}
	idx := e.Component.Index()
	if idx < 0 || idx >= len(g.components) || g.components[idx].placeholder {
		return ComponentID{}, &MissingEndpointError{Side: side, ID: e.Component}
	}
	return e.Component.Unflagged(), nil
}

// AddDependency wires src's channel to dst's input channel. It validates
// that both endpoints exist, that the source channel has a non-None
// OutputKind, and that the destination declares (or dynamically accepts
// via CanTake) an input on the named channel. A destination's named slot
// may receive more than one source only if the destination declared a
// MinTree or FullTree input shape; Named and Primary slots may have at
// most one source each.
func (g *Graph) AddDependency(src, dst Endpoint) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	srcID, err := g.resolveEndpoint(src, "source")
	if err != nil {
		return err
	}
	dstID, err := g.resolveEndpoint(dst, "destination")
	if err != nil {
		return err
	}
	if srcID.Unflagged() == dstID.Unflagged() {
		return ErrSelfLoop
	}

	srcNode := g.components[srcID.Index()]
	dstNode := g.components[dstID.Index()]

	isMulti := false
	if src.Channel == FinishChannel {
		// $finish is implicit on every component; the engine synthesizes
		// it in completeOne rather than the component declaring it.
	} else {
		outKind := srcNode.component.OutputKind(src.Channel)
		if outKind == OutputNone {
			return &NoOutputChannelError{Component: srcNode.name, Channel: src.Channel}
		}
		isMulti = outKind == OutputMultiple
	}

	if err := g.wireDestination(dstNode, dst.Channel, edgeRef{Src: srcID, Channel: src.Channel}); err != nil {
		return err
	}

	srcNode.outputs[src.Channel] = append(srcNode.outputs[src.Channel], dependent{
		Dst:        dstID.WithFlag(isMulti),
		DstChannel: dst.Channel,
		Multi:      isMulti,
	})
	return nil
}

func (g *Graph) wireDestination(dst *graphNode, channel Name, src edgeRef) error {
	switch dst.kind.Tag {
	case InputPrimary:
		if channel != "" {
			return &CannotAcceptInputError{Component: dst.name, Channel: channel}
		}
		if dst.primarySrc != nil {
			return &OverloadedInputError{Component: dst.name, Channel: channel}
		}
		dst.primarySrc = &src
		return nil
	case InputNamed:
		if channel == "" {
			return &CannotAcceptInputError{Component: dst.name, Channel: channel}
		}
		if !dst.hasSlot(channel) {
			if !dst.component.CanTake(channel) {
				return &CannotAcceptInputError{Component: dst.name, Channel: channel}
			}
			dst.slotSrcs[channel] = nil
			dst.slotOrder = append(dst.slotOrder, channel)
		}
		if len(dst.slotSrcs[channel]) > 0 {
			return &OverloadedInputError{Component: dst.name, Channel: channel}
		}
		dst.slotSrcs[channel] = []edgeRef{src}
		return nil
	default: // InputMinTree, InputFullTree: oversaturation allowed
		if channel == "" {
			return &CannotAcceptInputError{Component: dst.name, Channel: channel}
		}
		if !dst.hasSlot(channel) {
			if !dst.component.CanTake(channel) {
				return &CannotAcceptInputError{Component: dst.name, Channel: channel}
			}
			dst.slotSrcs[channel] = nil
			dst.slotOrder = append(dst.slotOrder, channel)
		}
		dst.slotSrcs[channel] = append(dst.slotSrcs[channel], src)
		return nil
	}
}

// Detach strips all of a component's input and output edges while leaving
// the component itself (and its name, if published) addressable.
func (g *Graph) Detach(id ComponentID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	resolved, err := g.resolveEndpoint(Endpoint{Component: id}, "component")
	if err != nil {
		return err
	}
	g.detachLocked(resolved)
	return nil
}

// Remove strips a component's edges and frees its name from the lookup
// table; other components' ids are left untouched (their slots are not
// renumbered), matching the original graph's stable-index guarantee.
func (g *Graph) Remove(id ComponentID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	resolved, err := g.resolveEndpoint(Endpoint{Component: id}, "component")
	if err != nil {
		return err
	}
	g.detachLocked(resolved)
	node := g.components[resolved.Index()]
	if node.inLookup {
		delete(g.lookup, node.name)
	}
	g.components[resolved.Index()] = placeholderNode()
	if resolved.Index() < g.firstFree {
		g.firstFree = resolved.Index()
	}
	return nil
}

func (g *Graph) detachLocked(id ComponentID) {
	node := g.components[id.Index()]
	for _, srcs := range node.slotSrcsOrPrimary() {
		for _, s := range srcs {
			g.removeDependent(s.Src, s.Channel, id)
		}
	}
	node.primarySrc = nil
	for k := range node.slotSrcs {
		node.slotSrcs[k] = nil
	}
	for ch, deps := range node.outputs {
		for _, d := range deps {
			g.clearSlot(d.Dst.Unflagged(), d.DstChannel, id)
		}
		delete(node.outputs, ch)
	}
}

func (n *graphNode) slotSrcsOrPrimary() map[Name][]edgeRef {
	if n.kind.Tag == InputPrimary {
		if n.primarySrc != nil {
			return map[Name][]edgeRef{"": {*n.primarySrc}}
		}
		return nil
	}
	return n.slotSrcs
}

func (g *Graph) removeDependent(srcID ComponentID, channel Name, dstID ComponentID) {
	srcNode := g.components[srcID.Index()]
	deps := srcNode.outputs[channel]
	out := deps[:0]
	for _, d := range deps {
		if d.Dst.Unflagged() != dstID {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		delete(srcNode.outputs, channel)
	} else {
		srcNode.outputs[channel] = out
	}
}

func (g *Graph) clearSlot(dstID ComponentID, channel Name, srcID ComponentID) {
	node := g.components[dstID.Index()]
	switch node.kind.Tag {
	case InputPrimary:
		if node.primarySrc != nil && node.primarySrc.Src == srcID {
			node.primarySrc = nil
		}
	default:
		srcs := node.slotSrcs[channel]
		out := srcs[:0]
		for _, s := range srcs {
			if s.Src != srcID {
				out = append(out, s)
			}
		}
		node.slotSrcs[channel] = out
	}
}

// Component returns the component registered at id, or false if it was
// removed (or never existed).
func (g *Graph) Component(id ComponentID) (Component, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := id.Index()
	if idx < 0 || idx >= len(g.components) || g.components[idx].placeholder {
		return nil, false
	}
	return g.components[idx].component, true
}
