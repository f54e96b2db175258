package streamgraph

import "testing"

type cloneCounter struct {
	n int
}

func (c cloneCounter) Clone() cloneCounter { return cloneCounter{n: c.n + 1} }

type fielded struct {
	A int
	B string
}

func (f fielded) Field(name string) (any, bool) {
	switch name {
	case "A":
		return f.A, true
	case "B":
		return f.B, true
	default:
		return nil, false
	}
}

func (f fielded) FieldNames() []string { return []string{"A", "B"} }

func TestAsRoundTrip(t *testing.T) {
	v := NewValue("num", 7)
	got, err := As[int](v)
	if err != nil {
		t.Fatalf("As[int]: %v", err)
	}
	if got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestAsTypeMismatch(t *testing.T) {
	v := NewValue("num", 7)
	_, err := As[string](v)
	var mismatch *TypeMismatchError
	if !asError(err, &mismatch) {
		t.Fatalf("expected *TypeMismatchError, got %v", err)
	}
}

func TestAsNilValue(t *testing.T) {
	_, err := As[int](nil)
	var mismatch *TypeMismatchError
	if !asError(err, &mismatch) {
		t.Fatalf("expected *TypeMismatchError for nil Value, got %v", err)
	}
	if mismatch.Actual != "<nil>" {
		t.Errorf("Actual = %q, want <nil>", mismatch.Actual)
	}
}

func TestMustAsPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustAs to panic on type mismatch")
		}
	}()
	MustAs[string](NewValue("num", 7))
}

func TestCloneUsesClonerWhenPresent(t *testing.T) {
	v := NewValue("counter", cloneCounter{n: 1})
	cloned := v.Clone()
	got, err := As[cloneCounter](cloned)
	if err != nil {
		t.Fatalf("As: %v", err)
	}
	if got.n != 2 {
		t.Errorf("Clone should have incremented n via Cloner, got %d", got.n)
	}
}

func TestCloneFallsBackToAssignment(t *testing.T) {
	v := NewValue("plain", 5)
	cloned := v.Clone()
	got, _ := As[int](cloned)
	if got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestFieldReflectsNamedSubFields(t *testing.T) {
	v := NewValue("rec", fielded{A: 1, B: "hi"})
	fa, ok := Field(v, "A")
	if !ok {
		t.Fatal("expected field A to resolve")
	}
	if got, _ := As[int](fa); got != 1 {
		t.Errorf("field A = %v, want 1", got)
	}
	if _, ok := Field(v, "missing"); ok {
		t.Fatal("expected ok=false for unknown field")
	}
}

func TestFieldOnNonFielderReturnsFalse(t *testing.T) {
	v := NewValue("plain", 5)
	if _, ok := Field(v, "anything"); ok {
		t.Fatal("expected ok=false for a payload that doesn't implement Fielder")
	}
}
