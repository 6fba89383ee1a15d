package config

import (
	"maps"
	"slices"

	"github.com/sirkon/sizeoverflow/internal/ssair"
)

// Database lists slots of functions known to turn integers into sizes.
// Configured entries replace predefined ones for the same function.
type Database struct {
	known map[string][]int
}

// NewDatabase merges custom entries over the predefined set.
func NewDatabase(custom []HashEntry) *Database {
	predefined := map[string][]int{
		// make([]T, len, cap).
		ssair.MakeSliceFunc: {1, 2},

		// Stdlib.
		"strings.Repeat":           {2},
		"bytes.Repeat":             {2},
		"(*bytes.Buffer).Grow":     {2},
		"(*strings.Builder).Grow":  {2},
		"io.CopyN":                 {3},
		"io.LimitReader":           {2},
		"io.NewSectionReader":      {2, 3},
		"bufio.NewReaderSize":      {2},
		"bufio.NewWriterSize":      {2},
		"slices.Grow":              {2},
		"slices.Repeat":            {2},
		"(*bufio.Reader).Peek":     {2},
		"(*bufio.Reader).Discard":  {2},
		"(*bytes.Buffer).Truncate": {2},
		"(*bytes.Buffer).Next":     {2},
		"(*os.File).Truncate":      {2},
		"os.Truncate":              {2},
	}

	known := maps.Clone(predefined)
	for _, e := range custom {
		known[e.Function] = slices.Clone(e.Params)
	}

	return &Database{known: known}
}

// Slots returns interesting slots of the function.
func (d *Database) Slots(name string) []int {
	if d == nil {
		return nil
	}
	return d.known[name]
}

// Len returns the number of functions in the database.
func (d *Database) Len() int {
	if d == nil {
		return 0
	}
	return len(d.known)
}
