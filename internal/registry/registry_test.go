package registry

import (
	"errors"
	"testing"

	"github.com/sirkon/deepequal"

	"github.com/sirkon/sizeoverflow/internal/cloneargs"
	"github.com/sirkon/sizeoverflow/internal/sir"
)

func newFunc(name string, params int) *sir.Func {
	types := make([]sir.Type, params)
	for i := range types {
		types[i] = sir.U32
	}
	f := sir.NewFunc(name, types, sir.U32)
	f.NewBlock()
	return f
}

func cloneOf(orig *sir.Func, name string, skip ...int) *sir.Func {
	s := cloneargs.NewSkipSet(skip...)
	c := newFunc(name, len(orig.Params)-s.Len())
	c.CloneOf = orig
	c.Skip = s
	return c
}

func TestCloneWithDroppedArgument(t *testing.T) {
	r := New(nil)
	orig := newFunc("pkg.alloc", 2)
	clone := cloneOf(orig, "pkg.alloc.isra.0", 2)

	r.LookupOrCreate(orig, 1, Checked)
	r.LookupOrCreate(orig, 2, Checked)

	n := r.Find(clone, 1, nil)
	if n == nil || n.Name != "pkg.alloc" || n.Num != 1 {
		t.Fatalf("clone slot 1 must resolve to the original slot 1, got %v", n)
	}
	if n := r.Find(clone, 2, nil); n != nil {
		t.Fatalf("clone slot 2 does not exist, got %v", n)
	}
}

func TestFindThroughShiftedClone(t *testing.T) {
	r := New(nil)
	orig := newFunc("pkg.copy", 3)
	clone := cloneOf(orig, "pkg.copy.constprop.1", 1)
	r.LookupOrCreate(orig, 3, Checked)

	n := r.Find(clone, 2, Only(Checked))
	if n == nil || n.Num != 3 {
		t.Fatalf("clone slot 2 must be original slot 3, got %v", n)
	}
	if n := r.Find(clone, 2, Only(Suppressed)); n != nil {
		t.Fatalf("filter must reject checked node, got %v", n)
	}
	if n := r.Find(clone, 1, nil); n != nil {
		t.Fatalf("original slot 2 is not interesting, got %v", n)
	}
}

func TestFindDeletedOriginal(t *testing.T) {
	r := New(nil)
	orig := newFunc("pkg.fill", 2)
	r.LookupOrCreate(orig, 2, Checked)
	orig.Deleted = true

	first := cloneOf(orig, "pkg.fill.part.0")
	second := cloneOf(first, "pkg.fill.part.0.isra.3", 1)

	n := r.Find(second, 1, nil)
	if n == nil || n.Name != "pkg.fill" || n.Num != 2 {
		t.Fatalf("expected fallback by stripped name, got %v", n)
	}
}

func TestLookupOrCreateLinksOriginal(t *testing.T) {
	r := New(nil)
	orig := newFunc("pkg.grow", 3)
	clone := cloneOf(orig, "pkg.grow.isra.0", 1)

	cn := r.LookupOrCreate(clone, 2, Checked)
	on := r.Node(cn.Orig)
	if on == nil {
		t.Fatal("clone node must be linked to the original")
	}
	if on.Name != "pkg.grow" || on.Num != 3 || on.Fn != orig {
		t.Fatalf("unexpected original node %v", on)
	}
	if r.OrigFunc(clone) != orig {
		t.Fatal("original function lookup failed")
	}

	again := r.LookupOrCreate(clone, 2, Suppressed)
	if again != cn || again.Mark != Suppressed {
		t.Fatalf("lookup must return the same node with the stronger mark, got %v", again)
	}
}

func TestFunctionRemoved(t *testing.T) {
	r := New(nil)
	orig := newFunc("pkg.scan", 3)
	clone := cloneOf(orig, "pkg.scan.isra.2", 2)
	caller := newFunc("pkg.caller", 1)

	// Nodes came from a summary, so they are not linked to the original yet.
	ret := r.LookupOrCreateName(clone.Name, 0, Checked)
	arg := r.LookupOrCreateName(clone.Name, 2, Checked)
	r.AddChild(arg, r.LookupOrCreate(caller, 1, Unmarked))
	r.FunctionRemoved(clone)

	if r.Lookup("pkg.scan.isra.2", 0) != nil {
		t.Fatal("clone name must not be indexed anymore")
	}
	if got := r.Lookup("pkg.scan", 0); got != ret {
		t.Fatalf("return node must be kept under the stripped name, got %v", got)
	}
	got := r.Lookup("pkg.scan", 3)
	if got == nil {
		t.Fatal("slot 2 of the clone must be kept as slot 3 of the original")
	}
	if children := r.Children(got); len(children) != 1 || children[0].Name != "pkg.caller" {
		t.Fatalf("children must survive removal, got %v", children)
	}
	if !clone.Deleted {
		t.Fatal("function must be flagged as deleted")
	}
}

func TestFunctionRemovedMergesIntoExisting(t *testing.T) {
	r := New(nil)
	orig := newFunc("pkg.put", 1)
	clone := cloneOf(orig, "pkg.put.constprop.0")
	caller := newFunc("pkg.main", 1)

	existing := r.LookupOrCreate(orig, 1, Checked)
	cn := r.LookupOrCreate(clone, 1, Suppressed)
	r.AddChild(cn, r.LookupOrCreate(caller, 1, Unmarked))
	r.FunctionRemoved(clone)

	if got := r.Node(cn.ID); got != existing {
		t.Fatalf("merged node must resolve to the existing one, got %v", got)
	}
	if existing.Mark != Suppressed {
		t.Fatalf("merge must keep the stronger mark, got %s", existing.Mark)
	}
	if len(existing.Children) != 1 {
		t.Fatalf("children must be merged, got %v", existing.Children)
	}
	for _, n := range r.Nodes() {
		if n == cn {
			t.Fatal("merged node must not be listed")
		}
	}
	if nodes := r.Func("pkg.put"); len(nodes) != 1 || nodes[0] != existing {
		t.Fatalf("only the surviving node must be listed for the function, got %v", nodes)
	}
}

func TestFuncListsLiveNodes(t *testing.T) {
	r := New(nil)
	live := r.LookupOrCreateName("pkg.f", 1, Checked)
	dropped := r.LookupOrCreateName("pkg.f", 2, Unmarked)
	merged := r.LookupOrCreateName("pkg.f", 3, Unmarked)

	dropped.Removed = true
	r.merge(live, merged)

	nodes := r.Func("pkg.f")
	if len(nodes) != 1 || nodes[0] != live {
		t.Fatalf("expected only %v, got %v", live, nodes)
	}
	if len(r.Nodes()) != 1 {
		t.Fatalf("Nodes and Func must agree, got %v", r.Nodes())
	}
}

func TestCorrelate(t *testing.T) {
	a := newFunc("pkg.a", 3)
	b := newFunc("pkg.b", 3)
	ac := cloneOf(a, "pkg.a.isra.0", 1)
	bc := cloneOf(b, "pkg.b.isra.0", 2)

	type result struct {
		Num     int
		Missing bool
	}
	run := func(node, target *sir.Func, num int) result {
		got, err := Correlate(node, target, num)
		if err != nil {
			if !errors.Is(err, cloneargs.ErrNoCounterpart) {
				t.Fatalf("unexpected error %s", err)
			}
			return result{Missing: true}
		}
		return result{Num: got}
	}

	got := []result{
		run(ac, ac, 2),
		run(ac, b, 0),
		run(a, b, 2),
		run(b, a, 2),
		run(ac, bc, 2),
		run(ac, b, 2),
		run(a, bc, 3),
		run(a, bc, 2),
	}
	want := []result{
		{Num: 2},        // same function
		{Num: 0},        // return slot
		{Num: 2},        // neither is a clone
		{Num: 2},        // neither is a clone, reversed
		{Num: 2},        // both are clones
		{Num: 3},        // clone to original
		{Num: 2},        // original to clone
		{Missing: true}, // dropped by the clone
	}
	deepequal.SideBySide(t, "correlation", want, got)
}

func TestStripCloneSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "kmalloc", want: "kmalloc"},
		{in: "kmalloc.isra.0", want: "kmalloc"},
		{in: "copy.constprop.12", want: "copy"},
		{in: "read.part.3.isra.1", want: "read"},
		{in: "dup.clone.7", want: "dup"},
		{in: "odd.isra.x", want: "odd.isra.x"},
		{in: "pkg.Max[int]", want: "pkg.Max"},
		{in: "(*pkg.Buf[uint8]).Grow", want: "(*pkg.Buf).Grow"},
		{in: "(*bytes.Buffer).Grow$bound", want: "(*bytes.Buffer).Grow"},
		{in: "pkg.F$thunk", want: "pkg.F"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := StripCloneSuffix(tt.in); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}
