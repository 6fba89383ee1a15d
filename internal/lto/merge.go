package lto

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/registry"
	"github.com/sirkon/sizeoverflow/internal/soreport"
)

// Policy decides the mark of a node two units disagree on.
type Policy int

const (
	// SuppressedWins keeps a node suppressed when any unit suppresses it.
	SuppressedWins Policy = iota

	// CheckedWins keeps a node checked when any unit checks it.
	CheckedWins
)

func (p Policy) String() string {
	switch p {
	case SuppressedWins:
		return "suppressed-wins"
	case CheckedWins:
		return "checked-wins"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// UnmarshalText parses a policy name.
func (p *Policy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "suppressed-wins", "":
		*p = SuppressedWins
	case "checked-wins":
		*p = CheckedWins
	default:
		return fmt.Errorf("unknown merge policy %q", text)
	}
	return nil
}

// Resolve combines the mark already in the registry with an incoming one.
// Checked always dominates unmarked.
func (p Policy) Resolve(have, got registry.Mark) registry.Mark {
	if p == CheckedWins && (have == registry.Checked || got == registry.Checked) {
		return registry.Checked
	}
	return registry.Stronger(have, got)
}

// Merger folds summaries into a registry.
type Merger struct {
	Registry *registry.Registry
	Policy   Policy
	Reports  *soreport.ReporterPhase
	Log      logrus.FieldLogger
}

// Merge inserts nodes missing from the registry, resolves marks of nodes
// present in both and adds edges and original links. It returns the number of
// new nodes.
func (m *Merger) Merge(frag *Fragment) int {
	before := m.Registry.Len()
	for _, rec := range frag.Records {
		n := m.Registry.Lookup(rec.Name, rec.Num)
		if n == nil {
			n = m.Registry.LookupOrCreateName(rec.Name, rec.Num, rec.Mark)
		} else if n.Mark != rec.Mark {
			mark := m.Policy.Resolve(n.Mark, rec.Mark)
			if conflicting(n.Mark, rec.Mark) {
				m.Reports.Report(soreport.NodeMerged, rec.Name, rec.Num, 0,
					fmt.Sprintf("units disagree: %s and %s, keep %s", n.Mark, rec.Mark, mark))
			}
			n.Mark = mark
		}

		if rec.Orig != nil && n.Orig == registry.NoNode {
			o := m.Registry.LookupOrCreateName(rec.Orig.Name, rec.Orig.Num, registry.Unmarked)
			if o != n {
				n.Orig = o.ID
			}
		}
		for _, c := range rec.Children {
			m.Registry.AddChild(n, m.Registry.LookupOrCreateName(c.Name, c.Num, registry.Unmarked))
		}
	}

	added := m.Registry.Len() - before
	if m.Log != nil {
		m.Log.WithFields(logrus.Fields{
			"records": len(frag.Records),
			"added":   added,
		}).Debug("summary merged")
	}
	return added
}

func conflicting(a, b registry.Mark) bool {
	return a != b && a != registry.Unmarked && b != registry.Unmarked
}
