package streamgraph

// InputSpecifier is the caller-supplied description of the arguments to
// bind for one invocation, built with ArgSingle (Primary components) or
// ArgNamed (Named/MinTree/FullTree components). PackArgs resolves it
// against a specific component's compiled InputKind.
type InputSpecifier struct {
	hasSingle bool
	single    Value
	named     map[Name]Value
}

// ArgSingle specifies the sole anonymous input of a Primary component.
func ArgSingle(v Value) InputSpecifier {
	return InputSpecifier{hasSingle: true, single: v}
}

// ArgNamed specifies every named slot of a Named/MinTree/FullTree
// component as a channel-name-keyed map.
func ArgNamed(kv map[Name]Value) InputSpecifier {
	out := make(map[Name]Value, len(kv))
	for k, v := range kv {
		out[k] = v
	}
	return InputSpecifier{named: out}
}

// ArgList specifies named slots as two parallel slices — the positional
// form described for pack_args in the design: a flat list of names paired
// with a flat list of values, in any order.
func ArgList(names []Name, vals []Value) InputSpecifier {
	out := make(map[Name]Value, len(names))
	for i, n := range names {
		if i < len(vals) {
			out[n] = vals[i]
		}
	}
	return InputSpecifier{named: out}
}

// ArgPairs specifies named slots as a (name, value) tuple list, the third
// form described for pack_args.
func ArgPairs(pairs ...NamedValue) InputSpecifier {
	out := make(map[Name]Value, len(pairs))
	for _, p := range pairs {
		out[p.Name] = p.Value
	}
	return InputSpecifier{named: out}
}

// NamedValue is one (channel name, value) tuple, for ArgPairs.
type NamedValue struct {
	Name  Name
	Value Value
}

// packArgs builds the positional ComponentArgs a dispatched invocation
// expects, given what the caller supplied and the component's compiled
// input declaration. It never mutates the running Runner: the tree it
// builds for a Named/MinTree/FullTree entry is synthetic, standing in for
// the engine's usual aggregation-tree construction (which only applies to
// values delivered through Submit from an upstream component).
func packArgs(cd *componentData, spec InputSpecifier) (ComponentArgs, error) {
	if cd.inputKind.Tag == InputPrimary {
		switch {
		case spec.hasSingle:
			return ComponentArgs{kind: InputPrimary, anon: spec.single}, nil
		case len(spec.named) == 0:
			return ComponentArgs{kind: InputPrimary}, nil
		default:
			return ComponentArgs{}, &ArgsMismatchError{Expected: 1, Given: len(spec.named)}
		}
	}

	expected := len(cd.slots)
	if len(spec.named) != expected {
		return ComponentArgs{}, &ArgsMismatchError{Expected: expected, Given: len(spec.named)}
	}

	node := newTreeNode(0, 0, false, nil, expected)
	for _, s := range cd.slots {
		v, ok := spec.named[s.name]
		if !ok {
			return ComponentArgs{}, &MissingInputError{Name: s.name}
		}
		node.vals[cd.slotIndex[s.name]] = v
	}
	node.remainingInputs = 0

	return ComponentArgs{kind: cd.inputKind.Tag, tree: &InputTree{cd: cd, node: node}}, nil
}
