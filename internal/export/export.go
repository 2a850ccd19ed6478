// Package export turns generated content into Markdown sources with YAML
// frontmatter, suitable for feeding another static site generator.
package export

import (
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/frontmatter"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/output"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

// Dir is the bundle directory exported sources are placed under.
const Dir = "content"

// Exporter builds Markdown sources for a run.
//
// When PreviousDir holds an earlier export, each document keeps its uid and
// its lastmod only moves when the fingerprint changes.
type Exporter struct {
	PreviousDir string
	Now         time.Time
	Logger      *slog.Logger
}

// SourcePath returns the bundle path of an exported document.
func SourcePath(section, slug string) string {
	return path.Join(Dir, section, slug+".md")
}

// Export returns bundle-relative paths mapped to document contents.
func (e *Exporter) Export(c *site.Content) (map[string]string, error) {
	if c == nil {
		return nil, errors.InternalError("nil content").Build()
	}
	now := e.Now
	if now.IsZero() {
		now = time.Now()
	}

	files := make(map[string]string, len(c.Pillars)+len(c.Articles))
	for _, p := range c.Pillars {
		slugs := make([]string, 0, len(p.Clusters))
		for _, a := range c.ArticlesFor(p.Slug) {
			slugs = append(slugs, a.Slug)
		}
		fields := map[string]any{
			"title":       p.Title,
			"slug":        p.Slug,
			"description": p.Description,
			"keyword":     p.FocusKeyword,
			"type":        "pillar",
			"articles":    slugs,
		}
		rel := SourcePath(site.PillarsDir, p.Slug)
		doc, err := e.document(rel, fields, p.Body, now)
		if err != nil {
			return nil, err
		}
		files[rel] = doc
	}

	for _, a := range c.Articles {
		fields := map[string]any{
			"title":       a.Title,
			"slug":        a.Slug,
			"description": a.Description,
			"keyword":     a.Keyword,
			"type":        "article",
			"pillar":      a.PillarSlug,
			"placeholder": a.IsPlaceholder,
		}
		rel := SourcePath(site.ArticlesDir, a.Slug)
		doc, err := e.document(rel, fields, a.Body, now)
		if err != nil {
			return nil, err
		}
		files[rel] = doc
	}
	return files, nil
}

func (e *Exporter) document(rel string, fields map[string]any, body string, now time.Time) (string, error) {
	e.carryOver(rel, fields)
	if _, err := frontmatter.EnsureUID(fields); err != nil {
		return "", exportError(err, rel)
	}
	text := []byte(strings.TrimRight(body, "\n") + "\n")
	if _, err := frontmatter.Stamp(fields, text, now); err != nil {
		return "", exportError(err, rel)
	}
	out, err := frontmatter.Render(fields, text)
	if err != nil {
		return "", exportError(err, rel)
	}
	return string(out), nil
}

// carryOver copies uid, fingerprint and lastmod from a previous export.
func (e *Exporter) carryOver(rel string, fields map[string]any) {
	if e.PreviousDir == "" {
		return
	}
	full, err := output.SafeJoin(e.PreviousDir, rel)
	if err != nil {
		return
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return
	}
	prev, _, err := frontmatter.Parse(data)
	if err != nil {
		e.logger().Warn("Ignoring unreadable previous export", logfields.Path(full), logfields.Error(err))
		return
	}
	for _, k := range []string{frontmatter.FieldUID, frontmatter.FieldLastmod, frontmatter.FieldFingerprint} {
		if v, ok := prev[k]; ok {
			fields[k] = v
		}
	}
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func exportError(err error, rel string) error {
	return errors.WrapError(err, errors.CategoryRender, "failed to export markdown source").
		WithContext("path", rel).
		Build()
}
