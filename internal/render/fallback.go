package render

import (
	"fmt"
	"regexp"
	"strings"
)

// The fallback renderer is a pure, local, best-effort wikitext to HTML
// transformation used whenever the render service fails or times out. It
// never produces a span-mapping table; degraded rendering without
// cross-highlighting is visible but non-blocking.

var (
	boldRe     = regexp.MustCompile(`(?s)'''(.*?)'''`)
	italicRe   = regexp.MustCompile(`(?s)''(.*?)''`)
	headerRe   = regexp.MustCompile(`(?m)^(={2,6})\s*(.+?)\s*(={2,6})\s*$`)
	wikilinkRe = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	extlinkRe  = regexp.MustCompile(`\[(\S+) ([^\]]+)\]`)

	namedRefRe     = regexp.MustCompile(`<ref[^>]*name\s*=\s*["']([^"']+)["'][^>]*/>`)
	namedBodyRefRe = regexp.MustCompile(`<ref[^>]*name\s*=\s*["']([^"']+)["'][^>]*>[^<]*</ref>`)
	anonRefRe      = regexp.MustCompile(`<ref[^>]*>[^<]*</ref>`)
)

// Fallback converts wikitext to approximate HTML: bold/italic quotes,
// headings, internal and external links, and ref markup reduced to
// superscript markers
func Fallback(wikitext string) string {
	html := boldRe.ReplaceAllString(wikitext, "<strong>$1</strong>")
	html = italicRe.ReplaceAllString(html, "<em>$1</em>")

	html = headerRe.ReplaceAllStringFunc(html, func(line string) string {
		m := headerRe.FindStringSubmatch(line)
		if len(m[1]) != len(m[3]) {
			return line
		}
		level := len(m[1])
		return fmt.Sprintf("<h%d>%s</h%d>", level, m[2], level)
	})

	html = wikilinkRe.ReplaceAllStringFunc(html, func(link string) string {
		m := wikilinkRe.FindStringSubmatch(link)
		display := m[1]
		if m[2] != "" {
			display = m[2]
		}
		return `<a href="#" class="wikilink">` + display + `</a>`
	})
	html = extlinkRe.ReplaceAllString(html, `<a href="$1" class="external">$2</a>`)

	html = namedRefRe.ReplaceAllString(html, `<sup class="reference"><a href="#ref_$1">[$1]</a></sup>`)
	html = namedBodyRefRe.ReplaceAllString(html, `<sup class="reference"><a href="#ref_$1">[$1]</a></sup>`)
	html = anonRefRe.ReplaceAllString(html, `<sup class="reference"><a href="#ref_inline">[ref]</a></sup>`)

	var out []string
	for _, p := range strings.Split(html, "\n\n") {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "<h") {
			out = append(out, trimmed)
			continue
		}
		out = append(out, "<p>"+trimmed+"</p>")
	}

	return `<div class="wiki-content">` + strings.Join(out, "\n") + `</div>`
}
