// Package linkverify checks that the internal links of a generated site
// resolve to files in the same site.
package linkverify

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// BrokenLink is an internal reference whose target is missing.
type BrokenLink struct {
	Source string `json:"source"`
	Href   string `json:"href"`
	Target string `json:"target"`
	Tag    string `json:"tag"`
}

// Report summarizes one verification pass.
type Report struct {
	Documents int          `json:"documents"`
	Checked   int          `json:"checked"`
	External  int          `json:"external"`
	Broken    []BrokenLink `json:"broken"`
}

// OK reports whether no broken links were found.
func (r *Report) OK() bool { return len(r.Broken) == 0 }

// Err returns a render error listing broken links, or nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, 0, len(r.Broken))
	for _, b := range r.Broken {
		lines = append(lines, fmt.Sprintf("%s -> %s", b.Source, b.Href))
	}
	return errors.RenderError(fmt.Sprintf("%d broken internal links", len(r.Broken))).
		WithContext("links", strings.Join(lines, ", ")).
		Build()
}

// Verify checks every HTML document in files (bundle path -> content).
func Verify(files map[string]string, baseURL string) (*Report, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid base URL").Build()
	}

	docs := make([]string, 0, len(files))
	for p := range files {
		if strings.HasSuffix(p, ".html") {
			docs = append(docs, p)
		}
	}
	sort.Strings(docs)

	report := &Report{Documents: len(docs)}
	for _, doc := range docs {
		links, err := ExtractLinks(strings.NewReader(files[doc]), baseURL)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryParse, "failed to extract links").
				WithContext("path", doc).
				Build()
		}
		for _, l := range links {
			if !l.IsInternal {
				report.External++
				continue
			}
			target, ok := resolve(doc, l.URL, base)
			if !ok {
				continue
			}
			report.Checked++
			if _, exists := files[target]; !exists {
				report.Broken = append(report.Broken, BrokenLink{Source: doc, Href: l.URL, Target: target, Tag: l.Tag})
			}
		}
	}
	return report, nil
}

// VerifyDir loads a written site from dir and verifies it.
func VerifyDir(dir, baseURL string) (*Report, error) {
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasSuffix(rel, ".html") {
			files[rel] = ""
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read site directory").
			WithContext("path", dir).
			Build()
	}
	return Verify(files, baseURL)
}

// resolve maps a reference found in doc to a bundle path. Fragments, queries
// and non-file schemes yield ok=false.
func resolve(doc, ref string, base *url.URL) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	var p string
	switch {
	case u.Host != "":
		p = strings.TrimPrefix(u.Path, strings.TrimSuffix(base.Path, "/"))
		p = strings.TrimPrefix(p, "/")
	case u.Path == "":
		return "", false
	case strings.HasPrefix(u.Path, "/"):
		p = strings.TrimPrefix(u.Path, "/")
	default:
		p = path.Join(path.Dir(doc), u.Path)
	}

	p = path.Clean("/" + p)[1:]
	if p == "" || strings.HasSuffix(u.Path, "/") {
		p = path.Join(p, "index.html")
	}
	return p, true
}
