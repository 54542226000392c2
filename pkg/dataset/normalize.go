package dataset

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	invalidChars  = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// NormalizeColumnName converts an arbitrary column header into the canonical
// form that profiles expose and filter conditions must reference: lowercase,
// whitespace replaced by underscores, characters outside letters/digits/
// underscore (CJK included) stripped, underscore runs collapsed, leading and
// trailing underscores trimmed.
func NormalizeColumnName(name string) string {
	s := strings.ToLower(name)
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = invalidChars.ReplaceAllString(s, "")
	s = underscoreRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
