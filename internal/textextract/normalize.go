package textextract

import (
	"strings"
	"unicode"
)

// Normalize collapses a raw extraction into the canonical text the rest of
// the pipeline operates on. Chunk offsets are character offsets into this
// normalized form, so the transform must stay deterministic.
//
// Rules: CR/CRLF become LF, control characters other than newline are
// dropped (tab counts as a space), runs of spaces collapse to one, spaces
// around newlines are trimmed, and runs of blank lines collapse to a single
// blank line.
func Normalize(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\n':
			b.WriteRune('\n')
		case r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
