package streamgraph

import "sync"

// IDResolver translates graph-level ComponentIDs into the ids assigned by
// a specific Compile call. A Graph can be compiled more than once (for
// example after Detach/Remove edits); each compilation produces its own
// resolver and Runner.
type IDResolver struct {
	toRunner map[ComponentID]RunnerComponentID
	toGraph  []ComponentID
}

// Resolve looks up the RunnerComponentID assigned to a graph id.
func (r *IDResolver) Resolve(id ComponentID) (RunnerComponentID, bool) {
	rc, ok := r.toRunner[id.Unflagged()]
	return rc, ok
}

// Graph returns the originating ComponentID for a compiled id.
func (r *IDResolver) Graph(id RunnerComponentID) ComponentID {
	return r.toGraph[id.Index()]
}

// compiledSlot is one named input slot of a compiled tree/named component.
type compiledSlot struct {
	name  Name
	depth int // branch levels below the component's tree root before this slot is known
}

// compiledDependent is one entry of a compiled component's fan-out list.
type compiledDependent struct {
	Dst        RunnerComponentID
	DstChannel Name
	DstSlot    int // index into Dst's slots; unused (-1) when Dst is Primary
	Multi      bool
}

// componentData is the compiled, mostly-immutable record the Runner
// consults at dispatch time. Only the tree fields (guarded by mu) mutate
// after Compile returns.
type componentData struct {
	component Component
	name      Name
	id        RunnerComponentID

	inputKind    InputKind
	primarySrc   RunnerComponentID
	primaryMulti bool
	hasPrimary   bool

	slots     []compiledSlot
	slotIndex map[Name]int
	treeDepth int
	// ownCount[d] is the number of declared slots whose home depth is
	// exactly d — the count an aggregation-tree node at depth d must see
	// filled before it has satisfied its own level's contribution. See
	// inputtree.go for how this gates dispatch at the tree root.
	ownCount []int

	dependents    map[Name][]compiledDependent
	allDependents []compiledDependent

	mu    sync.Mutex
	trees map[uint64]*treeNode
}

func isPrefixPath(short, long []ComponentID) bool {
	if len(short) > len(long) {
		return false
	}
	for i, v := range short {
		if long[i] != v {
			return false
		}
	}
	return true
}

func mergeBranchPaths(component ComponentID, paths [][]ComponentID) ([]ComponentID, error) {
	var combined []ComponentID
	for _, p := range paths {
		switch {
		case combined == nil:
			combined = p
		case len(p) >= len(combined):
			if !isPrefixPath(combined, p) {
				return nil, crossedBranchesErr(component, combined, p)
			}
			combined = p
		default:
			if !isPrefixPath(p, combined) {
				return nil, crossedBranchesErr(component, combined, p)
			}
		}
	}
	if combined == nil {
		combined = []ComponentID{}
	}
	return combined, nil
}

func crossedBranchesErr(component ComponentID, a, b []ComponentID) error {
	one := component
	if len(a) > 0 {
		one = a[len(a)-1]
	}
	two := component
	if len(b) > 0 {
		two = b[len(b)-1]
	}
	return &CrossedBranchesError{Component: component, BranchOne: one, BranchTwo: two}
}

// Compile validates the graph and produces an immutable Runner plus an
// IDResolver mapping graph ids to runner ids. Validation enforces:
//  1. the graph (restricted to live, non-placeholder components) is
//     acyclic;
//  2. every component's upstream branch points lie on a single total
//     ancestor chain (no crossed branches);
//  3. tree-shaped components get a compiled slot depth per named input,
//     derived from that chain;
//  4. every Multiple-output edge is flagged branch-preserving.
//
// The runner's name table carries every published component name; use
// CompileWithoutLookup for a runner that is addressable by id only.
func (g *Graph) Compile() (*IDResolver, *Runner, error) {
	return g.compile(true)
}

// CompileWithoutLookup is Compile with an empty runner name table:
// components are reachable only through the returned IDResolver, not by
// published name. Useful for embedding a pipeline a host doesn't want
// addressable through Run's Entry field.
func (g *Graph) CompileWithoutLookup() (*IDResolver, *Runner, error) {
	return g.compile(false)
}

func (g *Graph) compile(includeLookup bool) (*IDResolver, *Runner, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var live []ComponentID
	for i, n := range g.components {
		if !n.placeholder {
			live = append(live, NewComponentID(i))
		}
	}
	if len(live) == 0 {
		return nil, nil, ErrEmptyGraph
	}

	inDegree := make(map[ComponentID]int, len(live))
	for _, id := range live {
		n := g.components[id.Index()]
		deg := 0
		if n.kind.Tag == InputPrimary {
			if n.primarySrc != nil {
				deg = 1
			}
		} else {
			for _, srcs := range n.slotSrcs {
				deg += len(srcs)
			}
		}
		inDegree[id] = deg
	}

	queue := make([]ComponentID, 0, len(live))
	for _, id := range live {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]ComponentID, 0, len(live))
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)
		node := g.components[u.Index()]
		for _, deps := range node.outputs {
			for _, d := range deps {
				dst := d.Dst.Unflagged()
				inDegree[dst]--
				if inDegree[dst] == 0 {
					queue = append(queue, dst)
				}
			}
		}
	}
	if len(order) != len(live) {
		var cycle []ComponentID
		for _, id := range live {
			if inDegree[id] > 0 {
				cycle = append(cycle, id)
			}
		}
		return nil, nil, &CycleError{Cycle: cycle}
	}

	branchPath := make(map[ComponentID][]ComponentID, len(live))
	for _, id := range order {
		node := g.components[id.Index()]
		var candidates [][]ComponentID
		if node.kind.Tag == InputPrimary {
			if node.primarySrc != nil {
				candidates = append(candidates, extendPath(g, branchPath, *node.primarySrc))
			}
		} else {
			for _, srcs := range node.slotSrcs {
				for _, s := range srcs {
					candidates = append(candidates, extendPath(g, branchPath, s))
				}
			}
		}
		merged, err := mergeBranchPaths(id, candidates)
		if err != nil {
			return nil, nil, err
		}
		branchPath[id] = merged
	}

	// Assign compiled RunnerComponentIDs in graph-index order.
	toRunner := make(map[ComponentID]RunnerComponentID, len(live))
	toGraph := make([]ComponentID, len(live))
	for i, id := range live {
		toRunner[id] = NewRunnerComponentID(i)
		toGraph[i] = id
	}
	resolver := &IDResolver{toRunner: toRunner, toGraph: toGraph}

	datas := make([]*componentData, len(live))
	for i, id := range live {
		node := g.components[id.Index()]
		cd := &componentData{
			component:  node.component,
			name:       node.name,
			id:         NewRunnerComponentID(i),
			inputKind:  node.kind,
			dependents: make(map[Name][]compiledDependent),
		}

		switch node.kind.Tag {
		case InputPrimary:
			if node.primarySrc != nil {
				rc, _ := toRunner[node.primarySrc.Src]
				cd.primarySrc = rc
				cd.hasPrimary = true
				cd.primaryMulti = isMultiEdge(g, node.primarySrc.Src, node.primarySrc.Channel)
			} else {
				cd.primarySrc = invalidRunnerComponentID
			}
		default:
			slotNames := append([]Name(nil), node.kind.Slots...)
			slotNames = append(slotNames, node.slotOrder...)
			cd.slotIndex = make(map[Name]int, len(slotNames))
			cd.slots = make([]compiledSlot, len(slotNames))
			chain := branchPath[id]
			for si, s := range slotNames {
				cd.slotIndex[s] = si
				depth := 0
				for _, src := range node.slotSrcs[s] {
					p := extendPath(g, branchPath, src)
					if len(p) > depth {
						depth = len(p)
					}
				}
				cd.slots[si] = compiledSlot{name: s, depth: depth}
			}
			cd.treeDepth = len(chain)
			ownCount := make([]int, cd.treeDepth+1)
			for _, s := range cd.slots {
				ownCount[s.depth]++
			}
			cd.ownCount = ownCount
		}
		datas[i] = cd
	}

	// Wire compiled dependents, now that every destination's slot indices
	// and depths are known.
	for _, id := range live {
		node := g.components[id.Index()]
		srcRC := toRunner[id]
		for channel, deps := range node.outputs {
			for _, d := range deps {
				dstID := d.Dst.Unflagged()
				dstRC := toRunner[dstID]
				dstData := datas[dstRC.Index()]
				slot := -1
				if dstData.inputKind.Tag != InputPrimary {
					slot = dstData.slotIndex[d.DstChannel]
				}
				cdep := compiledDependent{Dst: dstRC, DstChannel: d.DstChannel, DstSlot: slot, Multi: d.Multi}
				datas[srcRC.Index()].dependents[channel] = append(datas[srcRC.Index()].dependents[channel], cdep)
				datas[srcRC.Index()].allDependents = append(datas[srcRC.Index()].allDependents, cdep)
			}
		}
	}

	lookup := make(map[Name]RunnerComponentID)
	if includeLookup {
		for i, id := range live {
			node := g.components[id.Index()]
			if node.inLookup {
				lookup[node.name] = NewRunnerComponentID(i)
			}
		}
	}

	runner := newRunner(datas, lookup)
	return resolver, runner, nil
}

// extendPath returns the branch-ancestry chain arriving at the far end of
// edge e: the source's own chain, plus the source itself if the edge is
// branch-preserving (a Multiple-output channel).
func extendPath(g *Graph, branchPath map[ComponentID][]ComponentID, e edgeRef) []ComponentID {
	base := branchPath[e.Src]
	if isMultiEdge(g, e.Src, e.Channel) {
		out := make([]ComponentID, len(base)+1)
		copy(out, base)
		out[len(base)] = e.Src
		return out
	}
	return base
}

func isMultiEdge(g *Graph, src ComponentID, channel Name) bool {
	if channel == FinishChannel {
		return false
	}
	return g.components[src.Index()].component.OutputKind(channel) == OutputMultiple
}
