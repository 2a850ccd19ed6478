// Package emit renders planned site content into a static file bundle: HTML pages,
// stylesheet, sitemap, llms.txt, robots.txt and a deployment README.
//
// Every model- or user-supplied string reaches HTML through html/template contextual
// escaping, and structured data is encoded with encoding/json.
package emit

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/markdown"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

//go:embed templates/*.html.tmpl
var htmlFS embed.FS

//go:embed templates/*.txt.tmpl templates/*.md.tmpl
var textFS embed.FS

//go:embed assets/styles.css
var stylesheet string

// Fallback labels for articles whose pillar is missing.
const (
	OrphanCrumb     = "Pillar"
	OrphanBackLabel = "Pillar Page"
	OrphanListName  = "Articles"
)

// DefaultBaseURL is used when Options.BaseURL is empty.
const DefaultBaseURL = "https://yoursite.com"

var (
	pages = template.Must(template.New("pages").ParseFS(htmlFS, "templates/*.html.tmpl"))
	texts = texttemplate.Must(texttemplate.New("texts").Option("missingkey=error").ParseFS(textFS, "templates/*.txt.tmpl", "templates/*.md.tmpl"))
)

// Options controls emitted absolute URLs and dates.
type Options struct {
	BaseURL string
	Date    time.Time
}

func (o Options) normalized() Options {
	o.BaseURL = strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Date.IsZero() {
		o.Date = time.Now()
	}
	o.Date = o.Date.UTC()
	return o
}

// Emit renders content into a bundle. It is a pure function of its inputs; a pillar
// slug that no article references and an article whose pillar is missing are both
// rendered, never rejected.
func Emit(content *site.Content, brand site.BrandProfile, opts Options) (*site.Bundle, error) {
	if content == nil {
		return nil, errors.RenderError("no content to emit").Build()
	}
	e := &emitter{content: content, brand: brand, opts: opts.normalized()}
	return e.run()
}

type emitter struct {
	content *site.Content
	brand   site.BrandProfile
	opts    Options
	bundle  *site.Bundle
}

func (e *emitter) run() (*site.Bundle, error) {
	e.bundle = &site.Bundle{Files: make(map[string]string)}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"index", e.index},
		{"pillars", e.pillars},
		{"articles", e.articles},
		{"sitemap", e.sitemap},
		{"llms", e.llms},
		{"readme", e.readme},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			if _, ok := errors.AsClassified(err); ok {
				return nil, err
			}
			return nil, errors.WrapError(err, errors.CategoryRender, "failed to render bundle").
				WithContext("document", s.name).Build()
		}
	}
	e.bundle.Files[site.FileRobots] = Robots(e.opts.BaseURL)
	e.bundle.Files[site.FileStyles] = stylesheet
	return e.bundle, nil
}

func (e *emitter) url(path string) string {
	return e.opts.BaseURL + "/" + path
}

// common is embedded by every page's template data.
type common struct {
	Brand       site.BrandProfile
	Year        int
	Title       string
	Description string
	Keywords    string
	Canonical   string
	Root        string
	JSONLD      []template.JS
}

func (e *emitter) common(path, title, description, keywords string, jsonld ...any) (common, error) {
	scripts := make([]template.JS, 0, len(jsonld))
	for _, doc := range jsonld {
		js, err := encodeJSONLD(doc)
		if err != nil {
			return common{}, err
		}
		scripts = append(scripts, js)
	}
	root := ""
	if strings.Contains(path, "/") {
		root = "../"
	}
	return common{
		Brand:       e.brand,
		Year:        e.opts.Date.Year(),
		Title:       title,
		Description: description,
		Keywords:    keywords,
		Canonical:   e.url(strings.TrimPrefix(path, site.FileIndex)),
		Root:        root,
		JSONLD:      scripts,
	}, nil
}

type pillarLink struct {
	site.PillarPage
	Href string
}

type articleLink struct {
	site.ClusterArticle
	Href string
}

func (e *emitter) index() error {
	c, err := e.common(site.FileIndex,
		e.brand.Name+" - "+e.brand.Tagline+" | "+e.content.Keyword,
		e.brand.ValueProposition, e.content.Keyword,
		organizationLD(e.brand, e.opts.BaseURL))
	if err != nil {
		return err
	}
	links := make([]pillarLink, 0, len(e.content.Pillars))
	for _, p := range e.content.Pillars {
		links = append(links, pillarLink{PillarPage: p, Href: site.PillarPath(p.Slug)})
	}
	return e.render(site.FileIndex, "index", struct {
		common
		Keyword string
		Pillars []pillarLink
	}{c, e.content.Keyword, links})
}

func (e *emitter) pillars() error {
	for _, p := range e.content.Pillars {
		path := site.PillarPath(p.Slug)
		c, err := e.common(path, p.Title+" | "+e.brand.Name, p.Description, p.FocusKeyword,
			articleLD(p.Title, p.Description, p.FocusKeyword, e.url(path), e.brand, e.opts.Date),
			breadcrumbLD(crumb{"Home", e.opts.BaseURL + "/"}, crumb{p.Title, e.url(path)}))
		if err != nil {
			return err
		}
		var arts []articleLink
		for _, a := range e.content.ArticlesFor(p.Slug) {
			arts = append(arts, articleLink{ClusterArticle: a, Href: "../" + site.ArticlePath(a.Slug)})
		}
		if err := e.render(path, "pillar", struct {
			common
			Pillar   site.PillarPage
			Body     template.HTML
			Articles []articleLink
		}{c, p, bodyHTML(p.Body), arts}); err != nil {
			return err
		}
		e.bundle.Pillars = append(e.bundle.Pillars, site.Page{Path: path, Title: p.Title, Slug: p.Slug})
	}
	return nil
}

func (e *emitter) articles() error {
	for _, a := range e.content.Articles {
		path := site.ArticlePath(a.Slug)
		parentPath := site.PillarPath(a.PillarSlug)
		crumbName, backLabel, listName := OrphanCrumb, OrphanBackLabel, OrphanListName
		if p, ok := e.content.PillarBySlug(a.PillarSlug); ok {
			crumbName, backLabel, listName = p.Title, p.Title, p.Title
		}
		c, err := e.common(path, a.Title+" | "+e.brand.Name, a.Description, a.Keyword,
			articleLD(a.Title, a.Description, a.Keyword, e.url(path), e.brand, e.opts.Date),
			breadcrumbLD(
				crumb{"Home", e.opts.BaseURL + "/"},
				crumb{listName, e.url(parentPath)},
				crumb{a.Title, e.url(path)}))
		if err != nil {
			return err
		}
		if err := e.render(path, "article", struct {
			common
			Article         site.ClusterArticle
			Body            template.HTML
			ParentHref      string
			ParentCrumb     string
			ParentBackLabel string
		}{c, a, bodyHTML(a.Body), "../" + parentPath, crumbName, backLabel}); err != nil {
			return err
		}
		e.bundle.Articles = append(e.bundle.Articles, site.Page{Path: path, Title: a.Title, Slug: a.Slug})
	}
	return nil
}

func (e *emitter) render(path, name string, data any) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return errors.WrapError(err, errors.CategoryRender, "failed to render page").
			WithContext("path", path).Build()
	}
	e.bundle.Files[path] = buf.String()
	return nil
}

// bodyHTML marks renderer output as trusted; RenderHTML escapes all text itself.
func bodyHTML(md string) template.HTML {
	return template.HTML(markdown.RenderHTML(md)) //nolint:gosec // renderer escapes input
}
