package llm

import (
	"regexp"
	"strings"
)

var fenceMarker = regexp.MustCompile("```[a-zA-Z]*\\n?|\\n?```")

// StripCodeFence removes Markdown code fence markers (```json, ```markdown, ```) that
// models wrap around otherwise raw output, and trims surrounding whitespace.
func StripCodeFence(s string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(s, ""))
}
