// Package markdown converts the Markdown subset produced by the content planner into
// HTML fragments and analyses generated bodies.
//
// Supported syntax: ATX headings (#, ##, ###), emphasis (*x*, **x**, ***x***) and
// single-level unordered lists (lines starting with "- " or "* "). Anything else is
// emitted as escaped text.
package markdown

import (
	"html"
	"regexp"
	"strings"
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineText
	lineHeading
	lineItem
)

type line struct {
	kind  lineKind
	level int
	text  string
}

var (
	strongEm = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	strong   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	em       = regexp.MustCompile(`\*(.+?)\*`)
)

// RenderHTML converts Markdown text to an HTML fragment. Blocks are separated by a
// newline: headings, one <ul> per run of consecutive list items, and one <p> per run of
// text lines delimited by blank lines, headings or lists.
func RenderHTML(text string) string {
	lines := classify(text)
	blocks := make([]string, 0, len(lines))

	var para []string
	var items []string
	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, "<p>"+strings.Join(para, "\n")+"</p>")
			para = nil
		}
	}
	flushList := func() {
		if len(items) > 0 {
			blocks = append(blocks, "<ul>\n"+strings.Join(items, "\n")+"\n</ul>")
			items = nil
		}
	}

	for _, l := range lines {
		switch l.kind {
		case lineBlank:
			flushPara()
			flushList()
		case lineHeading:
			flushPara()
			flushList()
			tag := "h" + string(rune('0'+l.level))
			blocks = append(blocks, "<"+tag+">"+inline(l.text)+"</"+tag+">")
		case lineItem:
			flushPara()
			items = append(items, "<li>"+inline(l.text)+"</li>")
		case lineText:
			flushList()
			para = append(para, inline(l.text))
		}
	}
	flushPara()
	flushList()

	return strings.Join(blocks, "\n")
}

func classify(text string) []line {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]line, 0, len(raw))
	for _, r := range raw {
		trimmed := strings.TrimSpace(r)
		switch {
		case trimmed == "":
			out = append(out, line{kind: lineBlank})
		case headingLevel(r) > 0:
			lvl := headingLevel(r)
			out = append(out, line{kind: lineHeading, level: lvl, text: strings.TrimSpace(r[lvl+1:])})
		case strings.HasPrefix(r, "- ") || strings.HasPrefix(r, "* "):
			out = append(out, line{kind: lineItem, text: strings.TrimSpace(r[2:])})
		default:
			out = append(out, line{kind: lineText, text: trimmed})
		}
	}
	return out
}

// headingLevel returns 1-3 for "# ", "## " and "### " prefixes, 0 otherwise.
func headingLevel(s string) int {
	n := 0
	for n < len(s) && s[n] == '#' {
		n++
	}
	if n == 0 || n > 3 || n >= len(s) || s[n] != ' ' {
		return 0
	}
	return n
}

// inline escapes s and applies emphasis. Markers without a closing partner are kept.
func inline(s string) string {
	s = html.EscapeString(s)
	s = strongEm.ReplaceAllString(s, "<strong><em>$1</em></strong>")
	s = strong.ReplaceAllString(s, "<strong>$1</strong>")
	return em.ReplaceAllString(s, "<em>$1</em>")
}
