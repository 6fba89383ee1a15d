package intentional

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Marker payload prefixes. They are matched byte for byte in this order, the
// plain prefix being a prefix of every other one.
const (
	TurnOffPrefix        = "# size_overflow MARK_TURN_OFF "
	YesPrefix            = "# size_overflow MARK_YES "
	EndIntentionalPrefix = "# size_overflow MARK_END_INTENTIONAL "
	NoMarkPrefix         = "# size_overflow MARK_NO"
	CheckpointPrefix     = "# size_overflow "
)

// ErrNotMarker is returned for text that is not a size overflow marker.
var ErrNotMarker = errors.New("not a size overflow marker")

// NoArg means the marker applies to every operand of the statement.
const NoArg = -1

// Marker is a parsed marker payload.
type Marker struct {
	Mark Mark

	// Checkpoint markers request a bounds check of the marked value.
	Checkpoint bool

	// Arg is the operand number the marker is about, NoArg when omitted.
	Arg int
}

var markerPrefixes = []struct {
	prefix string
	mark   Mark
}{
	{prefix: TurnOffPrefix, mark: TurnOff},
	{prefix: YesPrefix, mark: Yes},
	{prefix: EndIntentionalPrefix, mark: EndIntentional},
	{prefix: NoMarkPrefix, mark: None},
}

// ParseMarker decodes a marker payload.
func ParseMarker(text string) (Marker, error) {
	for _, p := range markerPrefixes {
		rest, ok := strings.CutPrefix(text, p.prefix)
		if !ok {
			continue
		}
		arg, err := parseArg(rest)
		if err != nil {
			return Marker{}, fmt.Errorf("parse %s marker: %w", p.mark, err)
		}
		return Marker{Mark: p.mark, Arg: arg}, nil
	}

	rest, ok := strings.CutPrefix(text, CheckpointPrefix)
	if !ok {
		return Marker{}, ErrNotMarker
	}
	arg, err := parseArg(rest)
	if err != nil {
		return Marker{}, fmt.Errorf("parse checkpoint marker: %w", err)
	}
	return Marker{Checkpoint: true, Arg: arg}, nil
}

func parseArg(rest string) (int, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return NoArg, nil
	}
	arg, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid operand number %q", rest)
	}
	if arg < 0 {
		return 0, fmt.Errorf("negative operand number %d", arg)
	}
	return arg, nil
}
