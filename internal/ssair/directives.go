package ssair

import (
	"fmt"
	"go/ast"
	"strconv"
	"strings"

	"github.com/sirkon/sizeoverflow/internal/cloneargs"
	"github.com/sirkon/sizeoverflow/internal/intentional"
	"github.com/sirkon/sizeoverflow/internal/sir"
)

// Function directives.
const (
	CheckDirective       = "//sizeoverflow:check"
	IntentionalDirective = "//sizeoverflow:intentional"
)

// parseDirectives collects slot attributes from a function doc comment.
func parseDirectives(doc *ast.CommentGroup) (sir.Attrs, error) {
	var attrs sir.Attrs
	if doc == nil {
		return attrs, nil
	}

	for _, c := range doc.List {
		var dst *[]int
		var rest string
		switch {
		case strings.HasPrefix(c.Text, CheckDirective):
			dst, rest = &attrs.SizeOverflow, c.Text[len(CheckDirective):]
		case strings.HasPrefix(c.Text, IntentionalDirective):
			dst, rest = &attrs.Intentional, c.Text[len(IntentionalDirective):]
		default:
			continue
		}
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			// Some other directive sharing the prefix.
			continue
		}

		slots, err := parseSlots(rest)
		if err != nil {
			return sir.Attrs{}, fmt.Errorf("parse directive %q: %w", c.Text, err)
		}
		*dst = append(*dst, slots...)
	}
	return attrs, nil
}

func parseSlots(text string) ([]int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no slots given")
	}

	res := make([]int, 0, len(fields))
	for _, f := range fields {
		slot, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid slot %q", f)
		}
		if slot < 0 || slot > cloneargs.MaxParam {
			return nil, fmt.Errorf("slot %d out of range", slot)
		}
		res = append(res, slot)
	}
	return res, nil
}

// markerText returns the marker payload of a line comment. Markers are
// written as "// # size_overflow ...", the operand number is optional.
func markerText(c *ast.Comment) (string, bool) {
	text, ok := strings.CutPrefix(c.Text, "//")
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text) + " "
	if !strings.HasPrefix(text, intentional.CheckpointPrefix) {
		return "", false
	}
	return text, true
}
