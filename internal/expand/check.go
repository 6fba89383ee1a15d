package expand

import (
	"github.com/sirkon/sizeoverflow/internal/sir"
)

// InsertCheck guards the use at before: the shadow narrowed back must equal
// the original value and the original value widened must equal the shadow.
// On mismatch control goes to a block reporting the site and aborting.
func (p *Pass) InsertCheck(before *sir.Stmt, orig, shadow *sir.Value, site sir.ReportSite) error {
	if before.Block == nil {
		return internalErr(p.fn, before, "check point was removed")
	}
	if before.Op == sir.OpPhi {
		return internalErr(p.fn, before, "cannot check before a phi")
	}
	if !orig.Type.IsInt() || shadow.Type != orig.Type.Wide() {
		return internalErr(p.fn, before, "cast between incompatible types %s and %s", shadow.Type, orig.Type)
	}

	f := p.fn
	b := before.Block

	ext := p.widened(orig, before)
	emit := func(s *sir.Stmt) *sir.Stmt {
		s.Pos = before.Pos
		return p.insertBefore(before, s)
	}

	trunc := emit(f.NewStmt(sir.OpConvert, orig.Type, shadow))
	narrowNe := emit(f.NewStmt(sir.OpCmp, sir.Bool, trunc.Result, orig))
	narrowNe.Cmp = sir.CmpNe
	if ext == nil {
		s := emit(f.NewStmt(sir.OpConvert, shadow.Type, orig))
		p.Visited.SkipExprCasts[s.ID] = struct{}{}
		ext = s.Result
	}
	wideNe := emit(f.NewStmt(sir.OpCmp, sir.Bool, shadow, ext))
	wideNe.Cmp = sir.CmpNe
	cond := emit(f.NewStmt(sir.OpOr, sir.Bool, narrowNe.Result, wideNe.Result))

	cont := f.SplitBefore(before)
	fault := f.NewBlock()
	p.mine(fault.Report(site))
	p.mine(fault.Unreachable())
	p.mine(b.If(cond.Result, fault, cont))
	return nil
}

func (p *Pass) mine(s *sir.Stmt) {
	p.Visited.MyStmts[s.ID] = struct{}{}
}
