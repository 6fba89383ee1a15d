package expand

import (
	"cmp"
	"slices"

	"github.com/sirkon/sizeoverflow/internal/sir"
)

type shadowGroup struct {
	origin sir.ValueID
	kind   shadowKind
}

// Dedup merges shadow statements computing the same original value that
// separate traversals created. The earliest created statement wins when it
// precedes every use of the duplicate in their common block. Statements left
// without uses by the merge are removed. It returns the number of merged
// statements.
func (p *Pass) Dedup() int {
	groups := make(map[shadowGroup][]*sir.Stmt)
	for id, sh := range p.shadows {
		s := p.fn.Stmt(id)
		if s == nil || s.Block == nil {
			continue
		}
		k := shadowGroup{origin: sh.origin, kind: sh.kind}
		groups[k] = append(groups[k], s)
	}

	keys := make([]shadowGroup, 0, len(groups))
	for k, stmts := range groups {
		if len(stmts) > 1 {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b shadowGroup) int {
		if c := cmp.Compare(a.origin, b.origin); c != 0 {
			return c
		}
		return cmp.Compare(a.kind, b.kind)
	})

	var merged int
	var orphans []*sir.Value
	for _, k := range keys {
		stmts := groups[k]
		slices.SortFunc(stmts, func(a, b *sir.Stmt) int {
			return cmp.Compare(a.ID, b.ID)
		})

		keep := stmts[0]
		for _, dup := range stmts[1:] {
			if !p.canMerge(keep, dup) {
				continue
			}
			p.fn.ReplaceAllUses(dup.Result, keep.Result)
			orphans = append(orphans, dup.Args...)
			p.fn.Remove(dup)
			merged++
		}
	}

	p.sweep(orphans)
	return merged
}

// canMerge checks keep is available at every use of dup.
func (p *Pass) canMerge(keep, dup *sir.Stmt) bool {
	if keep.Block != dup.Block || keep.Result.Type != dup.Result.Type {
		return false
	}
	if keep.Op == sir.OpPhi {
		return dup.Op == sir.OpPhi
	}

	at := keep.Index()
	for _, u := range p.fn.Uses(dup.Result) {
		if u.Block == keep.Block && u.Op != sir.OpPhi && u.Index() <= at {
			return false
		}
	}
	return true
}

// sweep removes engine statements the merge left without uses.
func (p *Pass) sweep(work []*sir.Value) {
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]

		s := v.Def
		if s == nil || s.Block == nil || !p.Visited.Mine(s) || s.Op.IsTerminator() {
			continue
		}
		if len(p.fn.Uses(v)) > 0 {
			continue
		}
		work = append(work, s.Args...)
		p.fn.Remove(s)
	}
}
