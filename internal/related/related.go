// Package related parses and renders the free-form "Related" list section
// embedded in a contact note's body.
package related

import (
	"regexp"
	"sort"
	"strings"
)

// Item is one relationship line: a kind term (free text, possibly a
// gendered surface form) and the display name of the target contact.
type Item struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// Section is the decoded Related section of a note body.
type Section struct {
	Found bool
	Level int
	Items []Item
}

var (
	anyHeadingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*$`)
	relatedHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(?i:related)\s*$`)
	wikiItemRe       = regexp.MustCompile(`^[-*]\s+(.+?)\s+\[\[([^\]|]+)(?:\|[^\]]*)?\]\]\s*$`)
	bareItemRe       = regexp.MustCompile(`^[-*]\s+(\S+)\s+(\S.*?)\s*$`)
)

// Decode locates a Related heading at any depth (1-6, any case) and parses
// the list lines that follow. Parsing stops at the next heading of equal
// or shallower depth. Malformed lines are skipped, never errored.
//
// The first section carrying items is the canonical one; empty Related
// headings before it are ignored so Decode and InjectInto agree on which
// section the engine owns.
func Decode(body string) Section {
	lines := strings.Split(body, "\n")
	var first *Section
	for i := 0; i < len(lines); {
		start, level := findHeading(lines, i)
		if start < 0 {
			break
		}
		sec := Section{Found: true, Level: level}
		end := start + 1
		for ; end < len(lines); end++ {
			if m := anyHeadingRe.FindStringSubmatch(lines[end]); m != nil && len(m[1]) <= level {
				break
			}
			if item, ok := parseItem(lines[end]); ok {
				sec.Items = append(sec.Items, item)
			}
		}
		if len(sec.Items) > 0 {
			return sec
		}
		if first == nil {
			first = &sec
		}
		i = end
	}
	if first != nil {
		return *first
	}
	return Section{}
}

// parseItem parses one list line in wiki-link or bare form.
func parseItem(line string) (Item, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "*") {
		return Item{}, false
	}
	if m := wikiItemRe.FindStringSubmatch(trimmed); m != nil {
		kind := strings.TrimSpace(m[1])
		target := strings.TrimSpace(m[2])
		if kind == "" || target == "" {
			return Item{}, false
		}
		return Item{Kind: kind, Target: target}, true
	}
	// A line with brackets that did not match the wiki form is malformed.
	if strings.Contains(trimmed, "[[") || strings.Contains(trimmed, "]]") {
		return Item{}, false
	}
	// Bare form needs at least a kind token and a name.
	if m := bareItemRe.FindStringSubmatch(trimmed); m != nil {
		return Item{Kind: m[1], Target: strings.TrimSpace(m[2])}, true
	}
	return Item{}, false
}

// Encode renders items as a canonical Related section. Entries are always
// re-sorted by (kind, target) so repeated renderings produce stable diffs.
// An empty item list renders as the heading alone.
func Encode(items []Item) string {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Target < sorted[j].Target
	})

	var b strings.Builder
	b.WriteString("## Related\n")
	for _, it := range sorted {
		b.WriteString("- " + it.Kind + " [[" + it.Target + "]]\n")
	}
	return b.String()
}

// InjectInto places a rendered Related section into a note body: it
// replaces the canonical Related section in place (the first one carrying
// items, matching Decode), or inserts the section before the first other
// heading, or appends it at end of document. Duplicate Related sections
// that still carry items are left untouched; only empty duplicates are
// dropped.
func InjectInto(body, rendered string) string {
	lines := strings.Split(body, "\n")
	rendered = strings.TrimRight(rendered, "\n")

	type span struct {
		start, end int
		hasItems   bool
	}
	var spans []span
	for i := 0; i < len(lines); {
		start, level := findHeading(lines, i)
		if start < 0 {
			break
		}
		end := start + 1
		hasItems := false
		for end < len(lines) {
			if m := anyHeadingRe.FindStringSubmatch(lines[end]); m != nil && len(m[1]) <= level {
				break
			}
			if _, ok := parseItem(lines[end]); ok {
				hasItems = true
			}
			end++
		}
		// Trailing blank lines stay outside the span so a replacement
		// never eats the separation before the next section.
		for end > start+1 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		spans = append(spans, span{start, end, hasItems})
		i = end
	}

	if len(spans) == 0 {
		return insertSection(lines, rendered)
	}

	primary := 0
	for i, sp := range spans {
		if sp.hasItems {
			primary = i
			break
		}
	}

	var out []string
	cursor := 0
	for i, sp := range spans {
		out = append(out, lines[cursor:sp.start]...)
		switch {
		case i == primary:
			out = append(out, strings.Split(rendered, "\n")...)
		case sp.hasItems:
			out = append(out, lines[sp.start:sp.end]...)
		}
		cursor = sp.end
	}
	out = append(out, lines[cursor:]...)
	return strings.Join(out, "\n")
}

// insertSection places rendered before the first heading, or appends it.
func insertSection(lines []string, rendered string) string {
	for i, line := range lines {
		if anyHeadingRe.MatchString(line) {
			var out []string
			out = append(out, lines[:i]...)
			out = append(out, strings.Split(rendered, "\n")...)
			out = append(out, "")
			out = append(out, lines[i:]...)
			return strings.Join(out, "\n")
		}
	}
	body := strings.Join(lines, "\n")
	if body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	if strings.TrimSpace(body) != "" {
		body += "\n"
	}
	return body + rendered + "\n"
}

// findHeading returns the index and depth of the first Related heading at
// or after from, or (-1, 0).
func findHeading(lines []string, from int) (int, int) {
	for i := from; i < len(lines); i++ {
		if m := relatedHeadingRe.FindStringSubmatch(lines[i]); m != nil {
			return i, len(m[1])
		}
	}
	return -1, 0
}
