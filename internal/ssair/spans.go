package ssair

import (
	"go/token"
	"slices"

	"github.com/sirkon/rbtree"
	"golang.org/x/tools/go/ssa"
)

// funcSpan stores the [start,end] span of a function body and a nested tree
// for closures declared inside it.
type funcSpan struct {
	start token.Pos
	end   token.Pos

	fn       *ssa.Function
	children *rbtree.Tree[*funcSpan]
}

// Cmp orders disjoint spans and returns 0 for any overlap. Go functions never
// overlap partially, so an overlap is always a containment.
func (n *funcSpan) Cmp(other *funcSpan) int {
	if n.end < other.start {
		return -1
	}
	if n.start > other.end {
		return 1
	}
	return 0
}

func (n *funcSpan) contains(o *funcSpan) bool {
	return n.start <= o.start && n.end >= o.end
}

// spanIndex finds the innermost function declared around a position.
type spanIndex struct {
	tree *rbtree.Tree[*funcSpan]
}

// newSpanIndex indexes source functions. Outer functions are inserted before
// the closures they contain.
func newSpanIndex(funcs []*ssa.Function) *spanIndex {
	var spans []*funcSpan
	for _, fn := range funcs {
		if fn.Synthetic != "" || fn.Origin() != nil {
			continue
		}
		syn := fn.Syntax()
		if syn == nil || !syn.Pos().IsValid() {
			continue
		}
		spans = append(spans, &funcSpan{start: syn.Pos(), end: syn.End(), fn: fn})
	}
	slices.SortStableFunc(spans, func(a, b *funcSpan) int {
		if a.start != b.start {
			return int(a.start) - int(b.start)
		}
		return int(b.end) - int(a.end)
	})

	idx := &spanIndex{tree: rbtree.New[*funcSpan]()}
	for _, s := range spans {
		attachInto(idx.tree, s)
	}
	return idx
}

// attachInto inserts s as a sibling when it is disjoint from every span of the
// tree and descends into the overlapping span otherwise.
func attachInto(t *rbtree.Tree[*funcSpan], s *funcSpan) {
	r := t.InsertReturn(s)
	if r == s {
		return
	}

	switch {
	case r.contains(s):
		if r.children == nil {
			r.children = rbtree.New[*funcSpan]()
		}
		attachInto(r.children, s)
	case s.contains(r):
		// s takes the place of r, r moves under it.
		old := *r
		*r = *s
		r.children = rbtree.New[*funcSpan]()
		attachInto(r.children, &old)
	default:
		panic("attachInto: partial-overlap spans are not supported")
	}
}

// Innermost returns the deepest function whose span covers pos.
func (idx *spanIndex) Innermost(pos token.Pos) *ssa.Function {
	probe := &funcSpan{start: pos, end: pos}
	n := idx.tree.Search(probe)
	if n == nil {
		return nil
	}
	for n.children != nil {
		child := n.children.Search(probe)
		if child == nil {
			break
		}
		n = child
	}
	return n.fn
}
