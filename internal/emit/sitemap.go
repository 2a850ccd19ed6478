package emit

import (
	"encoding/xml"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/site"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// SitemapURL is one <url> entry.
type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// URLSet is the sitemap document root.
type URLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

// BuildSitemap lists the home page, every pillar and every article, in that order.
func BuildSitemap(content *site.Content, baseURL string, date time.Time) URLSet {
	lastmod := date.Format(time.DateOnly)
	set := URLSet{Xmlns: sitemapNS}
	add := func(loc, freq, prio string) {
		set.URLs = append(set.URLs, SitemapURL{Loc: loc, LastMod: lastmod, ChangeFreq: freq, Priority: prio})
	}
	add(baseURL+"/", "weekly", "1.0")
	for _, p := range content.Pillars {
		add(baseURL+"/"+site.PillarPath(p.Slug), "weekly", "0.9")
	}
	for _, a := range content.Articles {
		add(baseURL+"/"+site.ArticlePath(a.Slug), "monthly", "0.8")
	}
	return set
}

func (e *emitter) sitemap() error {
	data, err := xml.MarshalIndent(BuildSitemap(e.content, e.opts.BaseURL, e.opts.Date), "", "  ")
	if err != nil {
		return err
	}
	e.bundle.Files[site.FileSitemap] = xml.Header + string(data) + "\n"
	return nil
}
