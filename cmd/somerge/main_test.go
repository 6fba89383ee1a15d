package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sirkon/sizeoverflow/internal/lto"
	"github.com/sirkon/sizeoverflow/internal/registry"
)

func writeSummary(t *testing.T, dir, name string, fill func(reg *registry.Registry)) string {
	t.Helper()

	reg := registry.New(nil)
	fill(reg)
	data, err := lto.Write(reg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMergeFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeSummary(t, dir, "a.sosum", func(reg *registry.Registry) {
		alloc := reg.LookupOrCreateName("a.Alloc", 1, registry.Checked)
		reg.AddChild(alloc, reg.LookupOrCreateName("a.pages", 1, registry.Unmarked))
	})
	b := writeSummary(t, dir, "b.sosum", func(reg *registry.Registry) {
		reg.LookupOrCreateName("a.Alloc", 1, registry.Suppressed)
		reg.LookupOrCreateName("b.Grow", 2, registry.Checked)
	})

	tests := []struct {
		name   string
		policy lto.Policy
		want   string
	}{
		{
			name:   "suppressed wins",
			policy: lto.SuppressedWins,
			want: "a.Alloc#1 suppressed <- a.pages#1\n" +
				"a.pages#1 unmarked\n" +
				"b.Grow#2 checked\n",
		},
		{
			name:   "checked wins",
			policy: lto.CheckedWins,
			want: "a.Alloc#1 checked <- a.pages#1\n" +
				"a.pages#1 unmarked\n" +
				"b.Grow#2 checked\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			data, err := mergeFiles([]string{a, b}, tt.policy, log)
			if err != nil {
				t.Fatal(err)
			}

			var buf bytes.Buffer
			if err := dump(&buf, data); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("merged summary mismatch (-want +got):\n%s", diff)
			}
			if len(hook.AllEntries()) != 0 {
				t.Errorf("conflicts are logged at debug level only, got %d entries", len(hook.AllEntries()))
			}
		})
	}
}

func TestMergeFilesErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.sosum")
	if err := os.WriteFile(broken, []byte{0xff}, 0o600); err != nil {
		t.Fatal(err)
	}

	log, _ := test.NewNullLogger()
	if _, err := mergeFiles([]string{broken}, lto.SuppressedWins, log); err == nil {
		t.Error("broken summary must be rejected")
	}
	if _, err := mergeFiles([]string{filepath.Join(dir, "missing.sosum")}, lto.SuppressedWins, log); err == nil {
		t.Error("missing summary must be rejected")
	}
}
