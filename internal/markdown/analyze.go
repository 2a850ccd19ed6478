package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Stats summarises a Markdown body.
type Stats struct {
	Words    int
	Headings []Heading
	Lists    int
	Links    int
}

// Heading is a heading found in a body.
type Heading struct {
	Level int
	Text  string
}

// HasHeading reports whether a heading containing substr (case-insensitive) exists.
func (s Stats) HasHeading(substr string) bool {
	needle := strings.ToLower(substr)
	for _, h := range s.Headings {
		if strings.Contains(strings.ToLower(h.Text), needle) {
			return true
		}
	}
	return false
}

// Analyze parses body with goldmark and collects word, heading, list and link counts.
//
// This is an analysis API; rendering is done by RenderHTML.
func Analyze(body string) Stats {
	src := []byte(body)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var st Stats
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			st.Headings = append(st.Headings, Heading{Level: node.Level, Text: plainText(node, src)})
		case *gmast.List:
			st.Lists++
		case *gmast.Link, *gmast.AutoLink:
			st.Links++
		case *gmast.Text:
			st.Words += len(strings.Fields(string(node.Segment.Value(src))))
		}
		return gmast.WalkContinue, nil
	})
	return st
}

func plainText(n gmast.Node, src []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*gmast.Text); ok {
				b.Write(t.Segment.Value(src))
			}
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
