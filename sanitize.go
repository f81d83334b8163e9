package klyptik

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	// a run of backslashes before n, t or a quote collapses to the bare character
	escapedSequence = regexp.MustCompile(`\\+([nt"])`)
	trailingComma   = regexp.MustCompile(`(?:,\s*)+([}\]])`)
	adjacentObjects = regexp.MustCompile(`\}\s*\{`)
	bareKey         = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

var unescaped = map[string]string{"n": "\n", "t": "\t", `"`: `"`}

// Sanitize applies the fixed textual repairs, in order, to a candidate that
// failed to parse. Each repair is idempotent and so is the whole sequence.
// The structural repairs leave string literals alone.
func Sanitize(candidate string) string {
	s := escapedSequence.ReplaceAllStringFunc(candidate, func(m string) string {
		return unescaped[m[len(m)-1:]]
	})
	s = outsideStrings(s, func(gap string) string {
		return trailingComma.ReplaceAllString(gap, "$1")
	})
	s = outsideStrings(s, func(gap string) string {
		return adjacentObjects.ReplaceAllString(gap, "},{")
	})
	s = outsideStrings(s, func(gap string) string {
		return bareKey.ReplaceAllString(gap, `$1"$2"$3`)
	})
	return s
}

// outsideStrings applies fn to every stretch of s between string literals
func outsideStrings(s string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, loc := range quotedLiteral.FindAllStringIndex(s, -1) {
		b.WriteString(fn(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(fn(s[last:]))
	return b.String()
}

// maxRepairBytes bounds the candidates handed to jsonrepair
const maxRepairBytes = 1 << 20

// DeepRepair hands a candidate to jsonrepair, which also closes truncated
// structures. The pipeline only uses it when deep repair is enabled.
// Candidates over maxRepairBytes or nested deeper than the parser accepts
// are refused with ErrRepairLimit.
func DeepRepair(candidate string) (string, error) {
	if len(candidate) > maxRepairBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrRepairLimit, len(candidate))
	}
	if depth := nestingDepth(candidate); depth > maxDepth {
		return "", fmt.Errorf("%w: depth %d", ErrRepairLimit, depth)
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return "", fmt.Errorf("failed to repair candidate: %w", err)
	}
	return repaired, nil
}

// nestingDepth is the deepest bracket nesting of s outside string literals.
// Unclosed brackets count, so truncated output is measured too.
func nestingDepth(s string) int {
	depth, deepest := 0, 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
			deepest = max(deepest, depth)
		case '}', ']':
			if depth > 0 {
				depth--
			}
		}
	}
	return deepest
}
