package sir

import (
	"fmt"
	"strings"
)

// Format renders the function body, one statement per line. Meant for test
// failure messages.
func (f *Func) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s", f.Name)
	if f.CloneOf != nil {
		fmt.Fprintf(&b, " clone of %s skip %s", f.CloneOf.Name, f.Skip)
	}
	b.WriteByte('\n')

	for _, blk := range f.Blocks {
		preds := make([]string, len(blk.Preds))
		for i, p := range blk.Preds {
			preds[i] = fmt.Sprint(p.Index)
		}
		fmt.Fprintf(&b, "b%d: preds [%s]\n", blk.Index, strings.Join(preds, " "))
		for _, s := range blk.Stmts {
			b.WriteString("\t")
			b.WriteString(s.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (s *Stmt) String() string {
	var b strings.Builder
	if s.Result != nil {
		fmt.Fprintf(&b, "%s:%s = ", s.Result.Name, s.Result.Type)
	}
	b.WriteString(s.Op.String())
	switch s.Op {
	case OpCmp:
		b.WriteString("." + s.Cmp.String())
	case OpCall:
		if s.Callee != nil {
			b.WriteString(" " + s.Callee.Name)
		} else {
			b.WriteString(" <dynamic>")
		}
	case OpReport:
		b.WriteString(" " + s.Site.String())
	}
	for _, a := range s.Args {
		b.WriteString(" ")
		b.WriteString(a.String())
	}
	if s.Block != nil && len(s.Block.Succs) > 0 && s.Op.IsTerminator() {
		succs := make([]string, len(s.Block.Succs))
		for i, x := range s.Block.Succs {
			succs[i] = fmt.Sprintf("b%d", x.Index)
		}
		b.WriteString(" -> " + strings.Join(succs, " "))
	}
	return b.String()
}
