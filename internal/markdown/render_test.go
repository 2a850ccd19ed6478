package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML_HeadingAndParagraph(t *testing.T) {
	got := RenderHTML("# T\n\nBody **bold** text")
	require.Equal(t, "<h1>T</h1>\n<p>Body <strong>bold</strong> text</p>", got)
}

func TestRenderHTML_Headings(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"# One", "<h1>One</h1>"},
		{"## Two", "<h2>Two</h2>"},
		{"### Three", "<h3>Three</h3>"},
		{"#### Four", "<p>#### Four</p>"},
		{"#NoSpace", "<p>#NoSpace</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderHTML(tt.in))
		})
	}
}

func TestRenderHTML_ListGrouping(t *testing.T) {
	got := RenderHTML("- a\n* b")
	assert.Equal(t, "<ul>\n<li>a</li>\n<li>b</li>\n</ul>", got)
	assert.Equal(t, 1, strings.Count(got, "<ul>"))
}

func TestRenderHTML_ListThenParagraph(t *testing.T) {
	got := RenderHTML("Intro\n- a\n- b\nAfter")
	assert.Equal(t, "<p>Intro</p>\n<ul>\n<li>a</li>\n<li>b</li>\n</ul>\n<p>After</p>", got)
}

func TestRenderHTML_ParagraphLinesJoin(t *testing.T) {
	got := RenderHTML("line one\nline two\n\nnext")
	assert.Equal(t, "<p>line one\nline two</p>\n<p>next</p>", got)
}

func TestRenderHTML_Emphasis(t *testing.T) {
	assert.Equal(t, "<p><strong><em>all</em></strong> <strong>b</strong> <em>i</em></p>",
		RenderHTML("***all*** **b** *i*"))
	assert.Equal(t, "<p>a * b</p>", RenderHTML("a * b"))
}

func TestRenderHTML_EscapesText(t *testing.T) {
	got := RenderHTML("<script>alert(1)</script> & **x**")
	assert.NotContains(t, got, "<script>")
	assert.Contains(t, got, "&lt;script&gt;")
	assert.Contains(t, got, "&amp;")
	assert.Contains(t, got, "<strong>x</strong>")
}

func TestRenderHTML_Placeholder(t *testing.T) {
	body := "# Title\n\n*Content placeholder - would be generated in production*\n\nDesc"
	got := RenderHTML(body)
	assert.Contains(t, got, "<em>Content placeholder - would be generated in production</em>")
	assert.True(t, strings.HasPrefix(got, "<h1>Title</h1>"))
}

func TestRenderHTML_CRLFAndEmpty(t *testing.T) {
	assert.Equal(t, "<h2>A</h2>\n<p>b</p>", RenderHTML("## A\r\n\r\nb\r\n"))
	assert.Empty(t, RenderHTML(""))
	assert.Empty(t, RenderHTML("\n\n  \n"))
}
