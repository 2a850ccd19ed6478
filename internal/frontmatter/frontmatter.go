// Package frontmatter reads and writes YAML frontmatter on Markdown documents
// and keeps their content fingerprints current.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

const delimiter = "---\n"

// ErrMissingClosingDelimiter indicates an opening `---` without a closing one.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates raw frontmatter (without delimiters) from the body.
// Documents without frontmatter return had=false and the full input as body.
func Split(content []byte) (frontmatter []byte, body []byte, had bool, err error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte(delimiter)) {
		return nil, content, false, nil
	}
	rest := content[len(delimiter):]
	if bytes.HasPrefix(rest, []byte(delimiter)) {
		return []byte{}, rest[len(delimiter):], true, nil
	}
	idx := bytes.Index(rest, []byte("\n"+delimiter))
	if idx < 0 {
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return rest[:idx+1], rest[idx+1+len(delimiter):], true, nil
}

// Join emits a document with frontmatter delimited by `---` lines.
func Join(frontmatter, body []byte) []byte {
	out := make([]byte, 0, 2*len(delimiter)+len(frontmatter)+len(body))
	out = append(out, delimiter...)
	out = append(out, frontmatter...)
	out = append(out, delimiter...)
	out = append(out, body...)
	return out
}

// Parse splits content and decodes its frontmatter into a map.
func Parse(content []byte) (fields map[string]any, body []byte, err error) {
	raw, body, _, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	fields = map[string]any{}
	if len(raw) == 0 {
		return fields, body, nil
	}
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, body, nil
}

// Render serializes fields and prepends them to body.
func Render(fields map[string]any, body []byte) ([]byte, error) {
	raw, err := Serialize(fields)
	if err != nil {
		return nil, err
	}
	return Join(raw, body), nil
}
