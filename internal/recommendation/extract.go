package recommendation

import (
	"strings"
)

// ExtractSection returns the trimmed body of the first "## name" section in
// text. The heading name is compared case-insensitively and the body runs up
// to the next heading or the end of text. ok is false when no such heading
// exists.
func ExtractSection(text, name string) (body string, ok bool) {
	want := strings.TrimSpace(name)
	lines := splitLines(text)

	start := -1
	for i, line := range lines {
		if h, isHeading := headingName(line); isHeading && strings.EqualFold(h, want) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return "", false
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if _, isHeading := headingName(lines[i]); isHeading {
			end = i
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines[start:end], "\n")), true
}

// ExtractItems returns the bullet ("- ", "* ") and numbered ("1. ") items of
// the named section, one per source line, in source order. Lines that are
// not list items are skipped rather than merged into the previous item.
// The result is empty when the section is missing or holds no list.
func ExtractItems(text, name string) []string {
	body, ok := ExtractSection(text, name)
	if !ok {
		return []string{}
	}

	items := []string{}
	for _, line := range splitLines(body) {
		if item, ok := listItem(strings.TrimSpace(line)); ok {
			items = append(items, item)
		}
	}
	return items
}

// ExtractConflicts returns the Area/Description/Resolution blocks of the
// CONFLICTS IDENTIFIED section in order of appearance.
//
// A label's text runs until the next label line, so values may span several
// lines; blank lines are ignored. A plain "Area:" style label without bullet
// or bold markup counts only where the block expects it next; elsewhere it is
// continuation text. Blocks missing a Description or Resolution, or with
// marked labels out of order, are dropped.
func ExtractConflicts(text string) []Conflict {
	body, ok := ExtractSection(text, SectionConflicts)
	if !ok {
		return []Conflict{}
	}
	if strings.Contains(strings.ToLower(body), noConflictsMarker) {
		return []Conflict{}
	}

	conflicts := []Conflict{}
	var cur *conflictBlock

	flush := func() {
		if c, ok := cur.complete(); ok {
			conflicts = append(conflicts, c)
		}
		cur = nil
	}

	for _, raw := range splitLines(body) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		kind, rest, marked, isLabel := conflictField(line)
		if !isLabel || (!marked && !cur.expects(kind)) {
			cur.appendText(line)
			continue
		}

		if kind == labelArea {
			flush()
			cur = &conflictBlock{}
		}
		cur.open(kind, rest)
	}
	flush()

	return conflicts
}

// conflictBlock accumulates one Area/Description/Resolution triple.
type conflictBlock struct {
	fields  [3][]string
	seen    labelKind
	invalid bool
}

func (b *conflictBlock) open(kind labelKind, text string) {
	if b == nil {
		// Description or Resolution before any Area.
		return
	}
	if kind != b.seen+1 {
		b.invalid = true
	}
	b.seen = kind
	if text != "" {
		b.fields[kind-1] = append(b.fields[kind-1], text)
	}
}

// expects reports whether kind is the next label in sequence.
func (b *conflictBlock) expects(kind labelKind) bool {
	if b == nil || b.seen == labelResolution {
		return kind == labelArea
	}
	return kind == b.seen+1
}

func (b *conflictBlock) appendText(line string) {
	if b == nil || b.seen == 0 {
		return
	}
	b.fields[b.seen-1] = append(b.fields[b.seen-1], line)
}

func (b *conflictBlock) complete() (Conflict, bool) {
	if b == nil || b.invalid || b.seen != labelResolution {
		return Conflict{}, false
	}
	c := Conflict{
		Area:        strings.Join(b.fields[0], "\n"),
		Description: strings.Join(b.fields[1], "\n"),
		Resolution:  strings.Join(b.fields[2], "\n"),
	}
	if c.Area == "" || c.Description == "" || c.Resolution == "" {
		return Conflict{}, false
	}
	return c, true
}
