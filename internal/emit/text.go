package emit

import (
	"bytes"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/site"
)

// Robots returns robots.txt allowing every crawler and pointing at the sitemap.
func Robots(baseURL string) string {
	return "User-agent: *\nAllow: /\nSitemap: " + baseURL + "/sitemap.xml\n\n# Crawl-delay for respectful bots\nCrawl-delay: 1\n"
}

type llmsArticle struct {
	site.ClusterArticle
	URL string
}

type llmsPillar struct {
	site.PillarPage
	URL      string
	Articles []llmsArticle
}

func (e *emitter) llms() error {
	pillars := make([]llmsPillar, 0, len(e.content.Pillars))
	for _, p := range e.content.Pillars {
		lp := llmsPillar{PillarPage: p, URL: e.url(site.PillarPath(p.Slug))}
		for _, a := range e.content.ArticlesFor(p.Slug) {
			lp.Articles = append(lp.Articles, llmsArticle{ClusterArticle: a, URL: e.url(site.ArticlePath(a.Slug))})
		}
		pillars = append(pillars, lp)
	}
	return e.renderText(site.FileLLMs, "llms.txt.tmpl", map[string]any{
		"Brand":   e.brand,
		"Keyword": e.content.Keyword,
		"Pillars": pillars,
	})
}

func (e *emitter) readme() error {
	return e.renderText(site.FileReadme, "readme.md.tmpl", map[string]any{
		"Brand":            e.brand,
		"BaseURL":          e.opts.BaseURL,
		"Pillars":          e.content.Pillars,
		"ArticleCount":     len(e.content.Articles),
		"PlaceholderCount": e.content.PlaceholderCount(),
		"Date":             e.opts.Date.Format(time.DateOnly),
	})
}

func (e *emitter) renderText(path, name string, data any) error {
	var buf bytes.Buffer
	if err := texts.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	e.bundle.Files[path] = buf.String()
	return nil
}
