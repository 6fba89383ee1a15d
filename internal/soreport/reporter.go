// Package soreport collects what the engine did and what it could not do while
// instrumenting a unit.
package soreport

import (
	"fmt"
	"go/token"
	"sync"

	"github.com/sirupsen/logrus"
)

// Reporter collects diagnostic records of an analysis run.
type Reporter struct {
	mu      sync.Mutex
	reports []Report
}

// Report represents a single diagnostic entry.
type Report struct {
	Phase   Phase
	Kind    Kind
	Func    string
	Slot    int
	Pos     token.Pos
	Message string
}

func (r Report) String() string {
	return fmt.Sprintf("[%s] %s %s#%d: %s", r.Phase, r.Kind, r.Func, r.Slot, r.Message)
}

// Phase marks the engine stage where a report was generated.
type Phase int

const (
	phaseInvalid   Phase = iota
	PhaseIPA             // registry seeding and propagation
	PhaseTransform       // expansion and bounds checks
	PhaseDedup           // duplicate elimination
	PhaseLTO             // summary merging
)

func (p Phase) String() string {
	switch p {
	case PhaseIPA:
		return "ipa"
	case PhaseTransform:
		return "transform"
	case PhaseDedup:
		return "dedup"
	case PhaseLTO:
		return "lto"
	default:
		return fmt.Sprintf("unknown-phase(%d)", p)
	}
}

// Kind classifies a record.
type Kind int

const (
	kindInvalid     Kind = iota
	CheckInserted        // a bounds check guards the slot
	CheckExempted        // the value is intentional, no check
	MissingFunction      // interesting return of a function without a body
	TranslationMiss      // clone slot has no counterpart
	DuplicateMerged      // shadow computations merged
	NodeMerged           // node of another unit merged into the registry
)

func (k Kind) String() string {
	switch k {
	case CheckInserted:
		return "check"
	case CheckExempted:
		return "exempted"
	case MissingFunction:
		return "missing-function"
	case TranslationMiss:
		return "translation-miss"
	case DuplicateMerged:
		return "duplicate-merged"
	case NodeMerged:
		return "node-merged"
	default:
		return fmt.Sprintf("unknown-kind(%d)", k)
	}
}

// ReporterPhase binds a Reporter to a fixed phase.
type ReporterPhase struct {
	parent *Reporter
	phase  Phase
}

// Phase returns a phase-bound reporter that sets the given phase for all
// reports produced through it.
func (r *Reporter) Phase(p Phase) *ReporterPhase {
	return &ReporterPhase{parent: r, phase: p}
}

// Report adds a new record to the reporter.
func (r *Reporter) Report(rep Report) {
	r.mu.Lock()
	r.reports = append(r.reports, rep)
	r.mu.Unlock()
}

// Report records an event about the slot of a function under the bound phase.
func (rp *ReporterPhase) Report(kind Kind, fn string, slot int, pos token.Pos, message string) {
	if rp == nil || rp.parent == nil {
		return
	}
	rp.parent.Report(Report{
		Phase:   rp.phase,
		Kind:    kind,
		Func:    fn,
		Slot:    slot,
		Pos:     pos,
		Message: message,
	})
}

// Reports returns a snapshot of all collected records.
func (r *Reporter) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Kind returns a snapshot of records of the given kind.
func (r *Reporter) Kind(k Kind) []Report {
	var out []Report
	for _, rep := range r.Reports() {
		if rep.Kind == k {
			out = append(out, rep)
		}
	}
	return out
}

// Log writes every record to the logger, failures to translate or to find a
// function at warning level and the rest at debug level.
func (r *Reporter) Log(log logrus.FieldLogger, fset *token.FileSet) {
	for _, rep := range r.Reports() {
		entry := log.WithFields(logrus.Fields{
			"phase":    rep.Phase.String(),
			"kind":     rep.Kind.String(),
			"function": rep.Func,
			"slot":     rep.Slot,
		})
		if fset != nil && rep.Pos.IsValid() {
			entry = entry.WithField("pos", fset.Position(rep.Pos).String())
		}
		switch rep.Kind {
		case MissingFunction, TranslationMiss:
			entry.Warn(rep.Message)
		default:
			entry.Debug(rep.Message)
		}
	}
}
