package registry

import (
	"strings"
	"unicode"
)

// gccCloneSuffixes are name parts the host optimizer appends to clones.
var gccCloneSuffixes = []string{
	".isra.",
	".constprop.",
	".part.",
	".clone.",
}

// goWrapperSuffixes are ssa wrapper suffixes.
var goWrapperSuffixes = []string{
	"$bound",
	"$thunk",
}

// StripCloneSuffix returns the name of the function a clone was made from.
// Names without clone suffixes are returned as is.
func StripCloneSuffix(name string) string {
	for _, sfx := range goWrapperSuffixes {
		name = strings.TrimSuffix(name, sfx)
	}
	name = stripTypeArgs(name)

	cut := len(name)
	for _, sfx := range gccCloneSuffixes {
		i := strings.Index(name, sfx)
		if i < 0 || i >= cut {
			continue
		}
		if !numbered(name[i+len(sfx):]) {
			continue
		}
		cut = i
	}
	return name[:cut]
}

// numbered checks the remainder starts with a clone number.
func numbered(rest string) bool {
	return rest != "" && unicode.IsDigit(rune(rest[0]))
}

// stripTypeArgs removes bracketed instantiation arguments.
func stripTypeArgs(name string) string {
	if !strings.ContainsRune(name, '[') {
		return name
	}

	var b strings.Builder
	var depth int
	for _, r := range name {
		switch {
		case r == '[':
			depth++
		case r == ']' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
