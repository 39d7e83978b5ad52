package recommendation

import (
	"regexp"
	"strings"
)

// The reply grammar is line oriented: every line is classified on its own and
// sections are delimited by heading lines.

var (
	// headingLine matches "## NAME" with optional surrounding whitespace.
	// Deeper headings ("### NAME") also delimit sections. Only whitespace may
	// precede the hashes, so "> ## NAME" or "text ## NAME" is not a heading.
	headingLine = regexp.MustCompile(`^\s*##+\s*(.*?)\s*$`)

	bulletItem   = regexp.MustCompile(`^[-*]\s+(.*)$`)
	numberedItem = regexp.MustCompile(`^\d+\.\s+(.*)$`)

	// conflictLabel matches "- **Area**: text", "**Area:** text" and "Area: text".
	// Groups 1 and 2 capture the bullet and bold markers.
	conflictLabel = regexp.MustCompile(`(?i)^([-*+]\s*)?(\*\*)?(area|description|resolution)(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.*)$`)
)

// splitLines normalizes line endings and splits text into lines.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// headingName reports the heading text of line, if line is a heading.
func headingName(line string) (string, bool) {
	m := headingLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// listItem reports the item text of a bullet or numbered line. The line must
// already be trimmed.
func listItem(line string) (string, bool) {
	if m := bulletItem.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := numberedItem.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

type labelKind int

const (
	labelArea labelKind = iota + 1
	labelDescription
	labelResolution
)

// conflictField reports which conflict label a trimmed line introduces and the
// text following the label marker. marked is true when the label carries a
// bullet or bold markup rather than appearing as plain "Area:" prose.
func conflictField(line string) (kind labelKind, rest string, marked, ok bool) {
	m := conflictLabel.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false, false
	}
	rest = strings.TrimSpace(m[4])
	marked = m[1] != "" || m[2] != ""
	switch strings.ToLower(m[3]) {
	case "area":
		return labelArea, rest, marked, true
	case "description":
		return labelDescription, rest, marked, true
	default:
		return labelResolution, rest, marked, true
	}
}
