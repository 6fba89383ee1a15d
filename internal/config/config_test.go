package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/sirkon/sizeoverflow/internal/expand"
	"github.com/sirkon/sizeoverflow/internal/lto"
	"github.com/sirkon/sizeoverflow/internal/soreport"
	"github.com/sirkon/sizeoverflow/internal/ssair"
)

func TestLoad(t *testing.T) {
	const text = `
log-level: debug
diagnostics: checks
merge-policy: checked-wins
hash-database:
  - function: example.com/pkg.Alloc
    params: [1, 2]
  - function: strings.Repeat
    params: []
`
	path := filepath.Join(t.TempDir(), "sizeoverflow.yaml")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	want := &Config{
		LogLevel:    logrus.DebugLevel,
		Diagnostics: DiagnosticsChecks,
		MergePolicy: lto.CheckedWins,
		ReportFunc:  expand.DefaultReportFunc,
		HashDatabase: []HashEntry{
			{Function: "example.com/pkg.Alloc", Params: []int{1, 2}},
			{Function: "strings.Repeat", Params: []int{}},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	db := cfg.Database()
	if diff := cmp.Diff([]int{1, 2}, db.Slots("example.com/pkg.Alloc")); diff != "" {
		t.Errorf("custom entry mismatch (-want +got):\n%s", diff)
	}
	if slots := db.Slots("strings.Repeat"); len(slots) != 0 {
		t.Errorf("configured entry must replace the predefined one, got %v", slots)
	}
	if diff := cmp.Diff([]int{3}, db.Slots("io.CopyN")); diff != "" {
		t.Errorf("predefined entry mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("default mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "unknown key", text: "colour: red\n"},
		{name: "unknown policy", text: "merge-policy: newest-wins\n"},
		{name: "unknown diagnostics", text: "diagnostics: loud\n"},
		{name: "slot out of range", text: "hash-database:\n  - function: f\n    params: [32]\n"},
		{name: "entry without function", text: "hash-database:\n  - params: [1]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.text)); err == nil {
				t.Fatal("error expected")
			}
		})
	}
}

func TestDiagnosticsWants(t *testing.T) {
	tests := []struct {
		level Diagnostics
		kind  soreport.Kind
		want  bool
	}{
		{DiagnosticsNone, soreport.MissingFunction, false},
		{DiagnosticsMisses, soreport.MissingFunction, true},
		{DiagnosticsMisses, soreport.TranslationMiss, true},
		{DiagnosticsMisses, soreport.CheckInserted, false},
		{DiagnosticsChecks, soreport.CheckInserted, true},
		{DiagnosticsChecks, soreport.DuplicateMerged, false},
		{DiagnosticsAll, soreport.NodeMerged, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String()+"/"+tt.kind.String(), func(t *testing.T) {
			if got := tt.level.Wants(tt.kind); got != tt.want {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	log := cfg.Logger(&buf)

	log.Info("hidden")
	log.WithField("function", "f").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info must be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "function=f") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDatabaseMakeSlice(t *testing.T) {
	db := NewDatabase(nil)
	if diff := cmp.Diff([]int{1, 2}, db.Slots(ssair.MakeSliceFunc)); diff != "" {
		t.Errorf("make slots mismatch (-want +got):\n%s", diff)
	}
	if db.Slots("example.com/pkg.Unknown") != nil {
		t.Error("unknown function must have no slots")
	}
}
