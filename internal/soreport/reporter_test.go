package soreport

import (
	"bytes"
	"go/format"
	"go/token"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestReporter_ReportPhases(t *testing.T) {
	tests := []struct {
		name    string
		phase   Phase
		kind    Kind
		fn      string
		slot    int
		message string
	}{
		{
			name:    "ipa missing function",
			phase:   PhaseIPA,
			kind:    MissingFunction,
			fn:      "pkg.extern",
			slot:    0,
			message: "interesting return of a function without a body",
		},
		{
			name:    "transform check",
			phase:   PhaseTransform,
			kind:    CheckInserted,
			fn:      "pkg.alloc",
			slot:    1,
			message: "bounds check inserted",
		},
		{
			name:    "dedup merge",
			phase:   PhaseDedup,
			kind:    DuplicateMerged,
			fn:      "pkg.alloc",
			slot:    0,
			message: "2 shadow statements merged",
		},
	}

	var r Reporter

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.Phase(tt.phase).Report(tt.kind, tt.fn, tt.slot, token.NoPos, tt.message)
		})
	}

	reps := r.Reports()
	if len(reps) != len(tests) {
		t.Fatalf("expected %d reports, got %d", len(tests), len(reps))
	}

	for i, rep := range reps {
		want := tests[i]
		if rep.Phase != want.phase {
			t.Errorf("[%s] phase mismatch: got %v, want %v", want.name, rep.Phase, want.phase)
		}
		if rep.Kind != want.kind {
			t.Errorf("[%s] kind mismatch: got %v, want %v", want.name, rep.Kind, want.kind)
		}
		if rep.Func != want.fn || rep.Slot != want.slot {
			t.Errorf("[%s] slot mismatch: got %s#%d, want %s#%d", want.name, rep.Func, rep.Slot, want.fn, want.slot)
		}
		if rep.Message != want.message {
			t.Errorf("[%s] message mismatch: got %q, want %q", want.name, rep.Message, want.message)
		}
	}

	if got := r.Kind(CheckInserted); len(got) != 1 || got[0].Func != "pkg.alloc" {
		t.Errorf("unexpected checks %v", got)
	}
}

func TestReporter_ConcurrencySafety(t *testing.T) {
	const n = 500
	var (
		r  Reporter
		wg sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Report(Report{
				Phase:   PhaseTransform,
				Kind:    CheckInserted,
				Slot:    i % 32,
				Message: "parallel add",
			})
		}(i)
	}
	wg.Wait()

	reps := r.Reports()
	if len(reps) != n {
		t.Fatalf("expected %d reports, got %d", n, len(reps))
	}
	reps[0].Message = "changed"
	reps2 := r.Reports()
	if reps2[0].Message == "changed" {
		t.Fatalf("Reports() returned shared slice, expected copy")
	}
}

func TestReporter_Log(t *testing.T) {
	var r Reporter
	r.Phase(PhaseIPA).Report(MissingFunction, "pkg.extern", 0, token.NoPos, "no body")
	r.Phase(PhaseTransform).Report(CheckInserted, "pkg.alloc", 1, token.NoPos, "check")

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	r.Log(log, nil)

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.WarnLevel || entries[0].Data["function"] != "pkg.extern" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Level != logrus.DebugLevel {
		t.Errorf("unexpected second entry level %s", entries[1].Level)
	}
}

func TestSourceFormatted(t *testing.T) {
	src, err := os.ReadFile("reporter.go")
	if err != nil {
		t.Fatal(err)
	}
	formatted, err := format.Source(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(src, formatted) {
		t.Error("reporter.go is not gofmt formatted")
	}
}
