package config

import (
	"fmt"

	"github.com/sirkon/sizeoverflow/internal/soreport"
)

// Diagnostics selects which engine records become analyzer diagnostics.
type Diagnostics int

const (
	DiagnosticsInvalid Diagnostics = iota

	// DiagnosticsNone keeps the analyzer silent.
	DiagnosticsNone

	// DiagnosticsMisses reports what could not be instrumented.
	DiagnosticsMisses

	// DiagnosticsChecks reports misses and every inserted check.
	DiagnosticsChecks

	// DiagnosticsAll reports every record.
	DiagnosticsAll
)

var diagnosticsValueMap = map[Diagnostics]string{
	DiagnosticsNone:   "none",
	DiagnosticsMisses: "misses",
	DiagnosticsChecks: "checks",
	DiagnosticsAll:    "all",
}

func (d Diagnostics) String() string {
	v, ok := diagnosticsValueMap[d]
	if !ok {
		return fmt.Sprintf("invalid(%d)", d)
	}

	return v
}

// UnmarshalText for setting values with configs, CLI, etc.
func (d *Diagnostics) UnmarshalText(rawtext []byte) error {
	text := string(rawtext)
	for k, v := range diagnosticsValueMap {
		if v == text {
			*d = k
			return nil
		}
	}

	return fmt.Errorf("unknown diagnostics level %q", text)
}

// Wants reports whether records of the kind are shown.
func (d Diagnostics) Wants(k soreport.Kind) bool {
	switch k {
	case soreport.MissingFunction, soreport.TranslationMiss:
		return d >= DiagnosticsMisses
	case soreport.CheckInserted:
		return d >= DiagnosticsChecks
	default:
		return d >= DiagnosticsAll
	}
}
