// Package segment splits document text into sentence-like candidate claim
// spans with byte offsets. This is a heuristic scanner, not a grammar parser:
// false splits inside citation markup or after abbreviations are a known and
// accepted limitation, partially absorbed by the minimum-length noise filter.
package segment

import (
	"regexp"
	"strings"
)

// DefaultMinLength is the noise filter threshold: candidates shorter than
// this many bytes are dropped rather than reported
const DefaultMinLength = 20

// headingRe matches a wikitext section heading line (level 2-6). Opening and
// closing runs must be the same length; Go regexps have no backreferences so
// the lengths are compared after matching.
var headingRe = regexp.MustCompile(`^(={2,6})\s*(.*?)\s*(={2,6})$`)

// Segment is one candidate claim span. Offsets are absolute into the
// document text the segmenter was given.
type Segment struct {
	Start   int
	End     int
	Text    string
	Section string // Nearest enclosing heading, empty above the first heading
}

// Segmenter produces ordered, non-overlapping candidate spans
type Segmenter struct {
	minLen int
}

// New creates a segmenter with the given noise threshold; values < 1 fall
// back to DefaultMinLength
func New(minLen int) *Segmenter {
	if minLen < 1 {
		minLen = DefaultMinLength
	}
	return &Segmenter{minLen: minLen}
}

// Segment splits the whole document into candidate spans
func (s *Segmenter) Segment(text string) []Segment {
	return s.scan(text, 0, len(text), "")
}

// SegmentRegion splits only [from, to), first expanded to the nearest
// segment boundaries, so an edit never forces re-deriving the whole
// document. Offsets in the result are absolute.
func (s *Segmenter) SegmentRegion(text string, from, to int) []Segment {
	from, to = s.ExpandRegion(text, from, to)
	return s.scan(text, from, to, sectionAt(text, from))
}

// ExpandRegion widens [from, to) to the enclosing segment boundaries: the
// position just after the previous sentence terminator or line break before
// from, and just after the next one at or past to.
func (s *Segmenter) ExpandRegion(text string, from, to int) (int, int) {
	if from < 0 {
		from = 0
	}
	if to > len(text) {
		to = len(text)
	}
	if to < from {
		to = from
	}

	start := 0
	for i := from - 1; i > 0; i-- {
		if text[i-1] == '\n' {
			start = i
			break
		}
		if isTerminal(text[i-1]) && isSpace(text[i]) {
			start = i
			break
		}
	}

	end := len(text)
	for i := to; i < len(text); i++ {
		if text[i] == '\n' {
			end = i + 1
			break
		}
		if isTerminal(text[i]) {
			j := skipRefs(text, i+1)
			if j >= len(text) || isSpace(text[j]) {
				end = j
				break
			}
		}
	}

	return start, end
}

// skipRefs advances past any <ref .../> or <ref>...</ref> markup starting at
// j. Citation tags trail the sentence punctuation in wikitext and belong to
// the sentence before them.
func skipRefs(text string, j int) int {
	for strings.HasPrefix(text[j:], "<ref") {
		gt := strings.IndexByte(text[j:], '>')
		if gt < 0 {
			return j
		}
		if text[j+gt-1] == '/' {
			j += gt + 1
			continue
		}
		end := strings.Index(text[j:], "</ref>")
		if end < 0 {
			return j
		}
		j += end + len("</ref>")
	}
	return j
}

// scan walks [from, to) emitting candidates at sentence terminators and line
// breaks. Heading lines update the current section and are never emitted as
// candidates themselves.
func (s *Segmenter) scan(text string, from, to int, section string) []Segment {
	var segs []Segment
	segStart := from

	flush := func(end int) {
		start := segStart
		for start < end && isSpace(text[start]) {
			start++
		}
		e := end
		for e > start && isSpace(text[e-1]) {
			e--
		}
		if e <= start {
			return
		}
		raw := text[start:e]
		if m := headingRe.FindStringSubmatch(raw); m != nil && len(m[1]) == len(m[3]) {
			section = m[2]
			return
		}
		if e-start < s.minLen {
			return
		}
		segs = append(segs, Segment{Start: start, End: e, Text: raw, Section: section})
	}

	for i := from; i < to; i++ {
		c := text[i]
		if c == '\n' {
			flush(i)
			segStart = i + 1
			continue
		}
		if c == '<' {
			// Never split inside citation markup
			if j := skipRefs(text, i); j > i {
				i = j - 1
				continue
			}
		}
		if isTerminal(c) {
			j := skipRefs(text, i+1)
			if j >= len(text) || isSpace(text[j]) {
				flush(j)
				segStart = j
				i = j - 1
			}
		}
	}
	if segStart < to {
		flush(to)
	}

	return segs
}

// sectionAt returns the heading in effect at the given offset by scanning
// backwards for the nearest heading line
func sectionAt(text string, pos int) string {
	if pos > len(text) {
		pos = len(text)
	}
	head := text[:pos]
	for {
		nl := strings.LastIndex(head, "\n")
		line := strings.TrimSpace(head[nl+1:])
		if m := headingRe.FindStringSubmatch(line); m != nil && len(m[1]) == len(m[3]) {
			return m[2]
		}
		if nl < 0 {
			return ""
		}
		head = head[:nl]
	}
}

// ExtractSection returns the content of the named section including its
// heading line, matching the title case-insensitively, up to the next
// heading of the same or higher level. Used to scope render requests.
func ExtractSection(text, name string) (string, bool) {
	lines := strings.Split(text, "\n")
	start := -1
	level := 0

	for i, line := range lines {
		m := headingRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil || len(m[1]) != len(m[3]) {
			continue
		}
		if strings.EqualFold(m[2], name) {
			start = i
			level = len(m[1])
			break
		}
	}
	if start < 0 {
		return "", false
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		m := headingRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m != nil && len(m[1]) == len(m[3]) && len(m[1]) <= level {
			end = i
			break
		}
	}

	return strings.Join(lines[start:end], "\n"), true
}

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
