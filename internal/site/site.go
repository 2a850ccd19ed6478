// Package site holds the domain model of a generated pillar/cluster website: topics
// planned by the model, the pages built from them, the brand profile and the final
// file bundle.
package site

import (
	"fmt"
	"sort"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// MaxDescriptionLength is the description budget requested from the model.
const MaxDescriptionLength = 150

// PillarTopic is a broad sub-category of the seed keyword.
type PillarTopic struct {
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Description  string `json:"description"`
	FocusKeyword string `json:"focus_keyword"`
}

// ClusterTopic is a long-tail article planned under a pillar.
type ClusterTopic struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Keyword     string `json:"keyword"`
	Description string `json:"description"`
}

// PillarPage is a pillar topic with its generated body and planned clusters.
type PillarPage struct {
	PillarTopic
	Body     string         `json:"body"`
	Clusters []ClusterTopic `json:"clusters"`
}

// ClusterArticle is a cluster topic with its body. Placeholder articles were not
// generated; their body only repeats the title and description.
type ClusterArticle struct {
	ClusterTopic
	Body          string `json:"body"`
	PillarSlug    string `json:"pillar_slug"`
	IsPlaceholder bool   `json:"is_placeholder"`
}

// BrandProfile is supplied by the user and constant for a run.
type BrandProfile struct {
	Name             string `yaml:"name" json:"name"`
	Tagline          string `yaml:"tagline" json:"tagline"`
	ValueProposition string `yaml:"value_proposition" json:"value_proposition"`
	Products         string `yaml:"products" json:"products"`
	CallToAction     string `yaml:"call_to_action" json:"call_to_action"`
}

// Content is everything the planner produced for one run.
type Content struct {
	Keyword  string           `json:"keyword"`
	Pillars  []PillarPage     `json:"pillars"`
	Articles []ClusterArticle `json:"articles"`
}

// PillarBySlug returns the pillar with the given slug.
func (c *Content) PillarBySlug(slug string) (PillarPage, bool) {
	for _, p := range c.Pillars {
		if p.Slug == slug {
			return p, true
		}
	}
	return PillarPage{}, false
}

// ArticlesFor returns the articles of a pillar in planning order.
func (c *Content) ArticlesFor(pillarSlug string) []ClusterArticle {
	var out []ClusterArticle
	for _, a := range c.Articles {
		if a.PillarSlug == pillarSlug {
			out = append(out, a)
		}
	}
	return out
}

// PlaceholderCount returns how many articles were not generated.
func (c *Content) PlaceholderCount() int {
	n := 0
	for _, a := range c.Articles {
		if a.IsPlaceholder {
			n++
		}
	}
	return n
}

// Validate checks slug uniqueness and that every article resolves to exactly one pillar.
func (c *Content) Validate() error {
	pillars := make(map[string]int, len(c.Pillars))
	for _, p := range c.Pillars {
		if p.Slug == "" {
			return errors.ValidationError("pillar has an empty slug").WithContext("title", p.Title).Build()
		}
		pillars[p.Slug]++
	}
	if dup := firstDuplicate(pillars); dup != "" {
		return errors.ValidationError("duplicate pillar slug").WithContext("slug", dup).Build()
	}

	articles := make(map[string]int, len(c.Articles))
	for _, a := range c.Articles {
		if a.Slug == "" {
			return errors.ValidationError("article has an empty slug").WithContext("title", a.Title).Build()
		}
		articles[a.Slug]++
		if pillars[a.PillarSlug] != 1 {
			return errors.ValidationError("article references an unknown pillar").
				WithContext("article", a.Slug).
				WithContext("pillar", a.PillarSlug).
				Build()
		}
	}
	if dup := firstDuplicate(articles); dup != "" {
		return errors.ValidationError("duplicate article slug").WithContext("slug", dup).Build()
	}
	return nil
}

func firstDuplicate(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k, n := range counts {
		if n > 1 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// Page is one rendered document of a bundle.
type Page struct {
	Path  string
	Title string
	Slug  string
}

// Bundle is the emitted website: relative path to file contents.
type Bundle struct {
	Files    map[string]string
	Pillars  []Page
	Articles []Page
}

// Required bundle entries besides the per-page documents.
const (
	FileIndex   = "index.html"
	FileSitemap = "sitemap.xml"
	FileLLMs    = "llms.txt"
	FileRobots  = "robots.txt"
	FileStyles  = "styles.css"
	FileReadme  = "README.md"

	PillarsDir  = "pillars"
	ArticlesDir = "articles"
)

// PillarPath returns the bundle path of a pillar document.
func PillarPath(slug string) string { return fmt.Sprintf("%s/%s.html", PillarsDir, slug) }

// ArticlePath returns the bundle path of a cluster document.
func ArticlePath(slug string) string { return fmt.Sprintf("%s/%s.html", ArticlesDir, slug) }

// Paths returns the bundle paths in sorted order.
func (b *Bundle) Paths() []string {
	out := make([]string, 0, len(b.Files))
	for p := range b.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Size returns the total number of content bytes.
func (b *Bundle) Size() int {
	n := 0
	for _, c := range b.Files {
		n += len(c)
	}
	return n
}
