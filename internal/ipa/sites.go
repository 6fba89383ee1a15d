// Package ipa seeds the registry of interesting slots and propagates it over the
// call graph of a unit.
package ipa

import (
	"fmt"

	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/sir"
	"github.com/sirkon/sizeoverflow/internal/soreport"
)

// SiteKind tells how the checked value leaves the function.
type SiteKind uint8

const (
	SiteArg SiteKind = iota + 1
	SiteReturn
	SiteCheckpoint
)

func (k SiteKind) String() string {
	switch k {
	case SiteArg:
		return "argument"
	case SiteReturn:
		return "return"
	case SiteCheckpoint:
		return "checkpoint"
	default:
		return fmt.Sprintf("site(%d)", k)
	}
}

// Site is a use of a value in an interesting slot.
type Site struct {
	Kind SiteKind

	// Stmt is the call or return using the value, or the checkpoint statement.
	Stmt  *sir.Stmt
	Value *sir.Value

	// Operand is the slot on Stmt's side: callee slot for arguments, zero for
	// returns.
	Operand int

	// Func and Slot identify the slot in reports, in the numbering of the
	// function owning the registry node.
	Func string
	Slot int

	// Node is nil for checkpoints.
	Node *registry.Node
}

// Sites lists uses of integer values in slots the registry holds as checked
// or unmarked. Checkpoints from marks are listed after calls and returns.
func Sites(fn *sir.Func, reg *registry.Registry, marks *intentional.Marks, rep *soreport.ReporterPhase) []Site {
	var res []Site
	retNode := reg.Find(fn, 0, registry.Except(registry.Suppressed))

	for _, b := range fn.Blocks {
		for _, s := range b.Stmts {
			switch s.Op {
			case sir.OpCall:
				res = append(res, argSites(s, reg, rep)...)
			case sir.OpReturn:
				if retNode == nil || !fn.ReturnsInt() || len(s.Args) != 1 {
					continue
				}
				res = append(res, Site{
					Kind:  SiteReturn,
					Stmt:  s,
					Value: s.Args[0],
					Func:  retNode.Name,
					Slot:  0,
					Node:  retNode,
				})
			}
		}
	}

	for _, cp := range marks.Lookup(fn).Checkpoints() {
		s := fn.Stmt(cp.Stmt)
		if s == nil || s.Block == nil || s.Result == nil || !s.Result.Type.IsInt() {
			continue
		}
		res = append(res, Site{
			Kind:    SiteCheckpoint,
			Stmt:    s,
			Value:   s.Result,
			Operand: cp.Slot,
			Func:    fn.Name,
			Slot:    cp.Slot,
		})
	}
	return res
}

func argSites(s *sir.Stmt, reg *registry.Registry, rep *soreport.ReporterPhase) []Site {
	callee := s.Callee
	if callee == nil {
		return nil
	}

	var res []Site
	for i, a := range s.Args {
		slot := i + 1
		if !a.Type.IsInt() {
			continue
		}
		n := reg.Find(callee, slot, registry.Except(registry.Suppressed))
		if n == nil {
			continue
		}

		num := slot
		if n.Fn != nil && n.Fn != callee {
			var err error
			if num, err = registry.Correlate(callee, n.Fn, slot); err != nil {
				rep.Report(soreport.TranslationMiss, callee.Name, slot, s.Pos, err.Error())
				continue
			}
		} else if n.Name != callee.Name {
			num = n.Num
		}

		res = append(res, Site{
			Kind:    SiteArg,
			Stmt:    s,
			Value:   a,
			Operand: slot,
			Func:    n.Name,
			Slot:    num,
			Node:    n,
		})
	}
	return res
}
