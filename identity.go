package streamgraph

import "fmt"

// ComponentID is a stable index into a Graph's component array, with a
// separate boolean flag used during compilation to mark a
// "branch-preserving" edge (see compile.go). Removed components leave the
// index valid but mark the slot as a placeholder; ComponentID itself stays
// a plain, comparable value so it can be used as a map key.
type ComponentID struct {
	idx  int
	flag bool
}

// NewComponentID constructs a ComponentID from a plain index.
func NewComponentID(idx int) ComponentID { return ComponentID{idx: idx} }

// Index returns the underlying array index, ignoring the flag bit.
func (c ComponentID) Index() int { return c.idx }

// Flag reports whether the branch-preserving flag is set.
func (c ComponentID) Flag() bool { return c.flag }

// WithFlag returns a copy of c with the branch-preserving flag set to v.
func (c ComponentID) WithFlag(v bool) ComponentID { return ComponentID{idx: c.idx, flag: v} }

// Unflagged returns a copy of c with the flag cleared, for use as a
// canonical map key regardless of how the id was obtained.
func (c ComponentID) Unflagged() ComponentID { return ComponentID{idx: c.idx} }

func (c ComponentID) String() string {
	if c.flag {
		return fmt.Sprintf("#%d*", c.idx)
	}
	return fmt.Sprintf("#%d", c.idx)
}

// RunnerComponentID is a stable index into a compiled Runner's component
// array. Compile produces an IDResolver mapping ComponentID -> RunnerComponentID.
type RunnerComponentID struct {
	idx int
}

// NewRunnerComponentID constructs a RunnerComponentID from a plain index.
func NewRunnerComponentID(idx int) RunnerComponentID { return RunnerComponentID{idx: idx} }

// Index returns the underlying array index.
func (r RunnerComponentID) Index() int { return r.idx }

// IsValid reports whether r has a non-negative index, as opposed to the
// internal index -1 marker used for a Primary component with no wired
// source. The zero value (index 0) is valid.
func (r RunnerComponentID) IsValid() bool { return r.idx >= 0 }

func (r RunnerComponentID) String() string { return fmt.Sprintf("rc#%d", r.idx) }

var invalidRunnerComponentID = RunnerComponentID{idx: -1}

// InputIndex is a two-part coordinate identifying one of a component's
// named inputs in its aggregation tree: how many branch levels above the
// root it sits (Depth), and which slot on that level (Slot).
type InputIndex struct {
	Depth int
	Slot  int
}

// RunID is an ordered sequence of branch ordinals. The root invocation has
// a single element (the top-level invocation number); each fan-out step
// appends one ordinal. RunID is comparable for equality with slices.Equal
// and for ancestry with RunID.IsAncestorOf.
type RunID []uint64

// Clone returns an independent copy of r, safe to extend without aliasing
// the original's backing array.
func (r RunID) Clone() RunID {
	out := make(RunID, len(r))
	copy(out, r)
	return out
}

// Append returns a new RunID with ordinal appended, leaving r untouched.
func (r RunID) Append(ordinal uint64) RunID {
	out := make(RunID, len(r)+1)
	copy(out, r)
	out[len(r)] = ordinal
	return out
}

// IsAncestorOf reports whether r is a prefix of other (including r == other).
func (r RunID) IsAncestorOf(other RunID) bool {
	if len(r) > len(other) {
		return false
	}
	for i, v := range r {
		if other[i] != v {
			return false
		}
	}
	return true
}

// Equal reports whether r and other contain the same ordinals.
func (r RunID) Equal(other RunID) bool {
	if len(r) != len(other) {
		return false
	}
	for i, v := range r {
		if other[i] != v {
			return false
		}
	}
	return true
}

func (r RunID) String() string {
	return fmt.Sprint([]uint64(r))
}
