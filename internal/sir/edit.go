package sir

import "slices"

// InsertAt inserts s into the block at position i.
func (b *Block) InsertAt(i int, s *Stmt) {
	s.Block = b
	b.Stmts = slices.Insert(b.Stmts, i, s)
}

// InsertBefore places s right before pos.
func InsertBefore(pos, s *Stmt) {
	pos.Block.InsertAt(pos.Index(), s)
}

// InsertAfter places s right after pos.
func InsertAfter(pos, s *Stmt) {
	pos.Block.InsertAt(pos.Index()+1, s)
}

// Remove detaches the statement from its block. The statement stays in the arena.
func (f *Func) Remove(s *Stmt) {
	i := s.Index()
	if i < 0 {
		return
	}
	b := s.Block
	b.Stmts = slices.Delete(b.Stmts, i, i+1)
	s.Block = nil
}

// Uses lists live statements using v.
func (f *Func) Uses(v *Value) []*Stmt {
	var res []*Stmt
	for _, b := range f.Blocks {
		for _, s := range b.Stmts {
			if slices.Contains(s.Args, v) {
				res = append(res, s)
			}
		}
	}
	return res
}

// ReplaceAllUses rewrites every live use of old with repl and returns the
// number of rewritten operands.
func (f *Func) ReplaceAllUses(old, repl *Value) int {
	var n int
	for _, b := range f.Blocks {
		for _, s := range b.Stmts {
			for i, a := range s.Args {
				if a == old {
					s.Args[i] = repl
					n++
				}
			}
		}
	}
	return n
}

// SplitBefore moves s and everything after it into a new block. The original
// block is left without a terminator and without successors; the new block
// inherits the successors, so phi edges in them keep their order.
func (f *Func) SplitBefore(s *Stmt) *Block {
	b := s.Block
	i := s.Index()

	nb := f.NewBlock()
	nb.Stmts = append(nb.Stmts, b.Stmts[i:]...)
	for _, x := range nb.Stmts {
		x.Block = nb
	}
	b.Stmts = b.Stmts[:i:i]

	nb.Succs = b.Succs
	b.Succs = nil
	for _, succ := range nb.Succs {
		if j := succ.predIndex(b); j >= 0 {
			succ.Preds[j] = nb
		}
	}
	return nb
}
