package emit

import (
	"encoding/json"
	"encoding/xml"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/site"
)

var runDate = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var brand = site.BrandProfile{
	Name:             "GreenBin",
	Tagline:          "Compost made easy",
	ValueProposition: "Turn scraps into soil",
	Products:         "Bins, starters, workshops",
	CallToAction:     "Order your starter kit",
}

func sampleContent() *site.Content {
	return &site.Content{
		Keyword: "home composting",
		Pillars: []site.PillarPage{
			{
				PillarTopic: site.PillarTopic{Title: "Composting Basics", Slug: "composting-basics", Description: "Start here", FocusKeyword: "compost basics"},
				Body:        "# Composting Basics\n\nIntro **bold**.\n\n- greens\n- browns",
				Clusters:    []site.ClusterTopic{{Title: "Greens vs Browns", Slug: "greens-vs-browns"}, {Title: "Bin Types", Slug: "bin-types"}},
			},
			{
				PillarTopic: site.PillarTopic{Title: "Vermicomposting", Slug: "vermicomposting", Description: "Worms", FocusKeyword: "worm bins"},
				Body:        "# Worms",
			},
		},
		Articles: []site.ClusterArticle{
			{ClusterTopic: site.ClusterTopic{Title: "Greens vs Browns", Slug: "greens-vs-browns", Keyword: "greens browns", Description: "Balance"}, Body: "# Greens vs Browns\n\nText", PillarSlug: "composting-basics"},
			{ClusterTopic: site.ClusterTopic{Title: "Bin Types", Slug: "bin-types", Keyword: "bins", Description: "Which bin"}, Body: "# Bin Types\n\n*Content placeholder - would be generated in production*\n\nWhich bin", PillarSlug: "composting-basics", IsPlaceholder: true},
		},
	}
}

func emitSample(t *testing.T, c *site.Content, b site.BrandProfile) *site.Bundle {
	t.Helper()
	bundle, err := Emit(c, b, Options{BaseURL: "https://greenbin.example/", Date: runDate})
	require.NoError(t, err)
	return bundle
}

func TestEmit_BundleLayout(t *testing.T) {
	b := emitSample(t, sampleContent(), brand)
	assert.Equal(t, []string{
		"README.md",
		"articles/bin-types.html",
		"articles/greens-vs-browns.html",
		"index.html",
		"llms.txt",
		"pillars/composting-basics.html",
		"pillars/vermicomposting.html",
		"robots.txt",
		"sitemap.xml",
		"styles.css",
	}, b.Paths())
	assert.Len(t, b.Pillars, 2)
	assert.Len(t, b.Articles, 2)
	assert.Equal(t, stylesheet, b.Files[site.FileStyles])
}

func TestEmit_SitemapCountsEveryPage(t *testing.T) {
	c := sampleContent()
	b := emitSample(t, c, brand)

	var set URLSet
	require.NoError(t, xml.Unmarshal([]byte(b.Files[site.FileSitemap]), &set))
	require.Len(t, set.URLs, 1+len(c.Pillars)+len(c.Articles))
	assert.Equal(t, "https://greenbin.example/", set.URLs[0].Loc)
	assert.Equal(t, "1.0", set.URLs[0].Priority)
	assert.Equal(t, "weekly", set.URLs[1].ChangeFreq)
	assert.Equal(t, "0.9", set.URLs[1].Priority)
	assert.Equal(t, "https://greenbin.example/articles/greens-vs-browns.html", set.URLs[3].Loc)
	assert.Equal(t, "monthly", set.URLs[3].ChangeFreq)
	assert.Equal(t, "0.8", set.URLs[3].Priority)
	for _, u := range set.URLs {
		assert.Equal(t, "2026-03-14", u.LastMod)
	}
	assert.True(t, strings.HasPrefix(b.Files[site.FileSitemap], `<?xml version="1.0" encoding="UTF-8"?>`))
}

func TestEmit_IndexPage(t *testing.T) {
	html := emitSample(t, sampleContent(), brand).Files[site.FileIndex]
	assert.Contains(t, html, "<title>GreenBin - Compost made easy | home composting</title>")
	assert.Contains(t, html, `<a href="pillars/composting-basics.html">Composting Basics</a>`)
	assert.Contains(t, html, `<span class="keyword-tag">worm bins</span>`)
	assert.Contains(t, html, "Ready to Get Started?")
	assert.Contains(t, html, "Order your starter kit")
	assert.Contains(t, html, "&copy; 2026 GreenBin. All rights reserved.")
	assert.Contains(t, html, `<a href="llms.txt">For AI Agents</a>`)

	ld := jsonLD(t, html)
	require.Len(t, ld, 1)
	assert.Equal(t, "Organization", ld[0]["@type"])
	assert.Equal(t, "https://greenbin.example/", ld[0]["url"])
}

func TestEmit_PillarPage(t *testing.T) {
	html := emitSample(t, sampleContent(), brand).Files["pillars/composting-basics.html"]
	assert.Contains(t, html, `<link rel="stylesheet" href="../styles.css">`)
	assert.Contains(t, html, `<li aria-current="page">Composting Basics</li>`)
	assert.Contains(t, html, "<h1>Composting Basics</h1>")
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<ul>\n<li>greens</li>\n<li>browns</li>\n</ul>")
	assert.Contains(t, html, "2 in-depth articles covering every aspect of Composting Basics")
	assert.Contains(t, html, `<a href="../articles/greens-vs-browns.html">`)
	assert.Contains(t, html, `<li class="article-item placeholder">`)
	assert.Equal(t, 1, strings.Count(html, "Coming Soon"))

	ld := jsonLD(t, html)
	require.Len(t, ld, 2)
	assert.Equal(t, "Article", ld[0]["@type"])
	assert.Equal(t, "BreadcrumbList", ld[1]["@type"])

	empty := emitSample(t, sampleContent(), brand).Files["pillars/vermicomposting.html"]
	assert.Contains(t, empty, "0 in-depth articles covering every aspect of Vermicomposting")
}

func TestEmit_ArticleBreadcrumbMatchesPillar(t *testing.T) {
	html := emitSample(t, sampleContent(), brand).Files["articles/greens-vs-browns.html"]
	assert.Contains(t, html, `<li><a href="../pillars/composting-basics.html">Composting Basics</a></li>`)
	assert.Contains(t, html, "← Back to Composting Basics")
	assert.Contains(t, html, `class="article-page single-column"`)

	crumbs := jsonLD(t, html)[1]["itemListElement"].([]any)
	require.Len(t, crumbs, 3)
	parent := crumbs[1].(map[string]any)
	assert.Equal(t, "Composting Basics", parent["name"])
	assert.Equal(t, "https://greenbin.example/pillars/composting-basics.html", parent["item"])
}

func TestEmit_OrphanArticleFallsBack(t *testing.T) {
	c := sampleContent()
	c.Articles[0].PillarSlug = "gone"
	html := emitSample(t, c, brand).Files["articles/greens-vs-browns.html"]

	assert.Contains(t, html, `<li><a href="../pillars/gone.html">Pillar</a></li>`)
	assert.Contains(t, html, "← Back to Pillar Page")
	parent := jsonLD(t, html)[1]["itemListElement"].([]any)[1].(map[string]any)
	assert.Equal(t, "Articles", parent["name"])
}

func TestEmit_EscapesUntrustedFields(t *testing.T) {
	evil := brand
	evil.Name = `<script>alert("brand")</script>`
	c := sampleContent()
	c.Pillars[0].Title = `Basics</script><script>alert(1)</script>`
	c.Pillars[0].Description = `" onmouseover="alert(2)`
	c.Pillars[0].Body = "# Hi <img src=x onerror=alert(3)>"

	b := emitSample(t, c, evil)
	for path, content := range b.Files {
		if !strings.HasSuffix(path, ".html") {
			continue
		}
		assert.NotContains(t, content, "<script>alert", path)
		assert.NotContains(t, content, "<img src=x", path)
		assert.NotContains(t, content, `" onmouseover="`, path)
	}

	pillar := b.Files["pillars/composting-basics.html"]
	assert.Contains(t, pillar, "&lt;img src=x onerror=alert(3)&gt;")
	assert.Contains(t, pillar, `</script>`)
	ld := jsonLD(t, pillar)
	assert.Equal(t, `Basics</script><script>alert(1)</script>`, ld[0]["headline"])
}

func TestEmit_LLMSAndRobots(t *testing.T) {
	b := emitSample(t, sampleContent(), brand)
	llms := b.Files[site.FileLLMs]

	assert.True(t, strings.HasPrefix(llms, "# GreenBin - home composting\n\n> Compost made easy\n\nTurn scraps into soil\n\n## Main Content Pillars\n\n"))
	assert.Contains(t, llms, "### Composting Basics\n- URL: https://greenbin.example/pillars/composting-basics.html\n- Description: Start here\n- Focus: compost basics\n\n#### Related Articles:\n- [Greens vs Browns](https://greenbin.example/articles/greens-vs-browns.html) - Balance\n- [Bin Types](https://greenbin.example/articles/bin-types.html) - Which bin\n\n### Vermicomposting\n")
	assert.Contains(t, llms, "- Focus: worm bins\n\n## About GreenBin\n\nBins, starters, workshops\n\n**Call to Action:** Order your starter kit\n")
	assert.True(t, strings.HasSuffix(llms, "---\nGenerated with AI SEO Website Generator | Optimized for Search Engines and AI Discovery\n"))

	assert.Equal(t, "User-agent: *\nAllow: /\nSitemap: https://greenbin.example/sitemap.xml\n\n# Crawl-delay for respectful bots\nCrawl-delay: 1\n", b.Files[site.FileRobots])

	readme := b.Files[site.FileReadme]
	assert.Contains(t, readme, "# GreenBin - Deployment Guide")
	assert.Contains(t, readme, "2 cluster articles (1 placeholders)")
	assert.Contains(t, readme, "Optimized for GreenBin\n2026-03-14")
}

func TestEmit_DefaultBaseURL(t *testing.T) {
	b, err := Emit(sampleContent(), brand, Options{Date: runDate})
	require.NoError(t, err)
	assert.Contains(t, b.Files[site.FileRobots], "Sitemap: https://yoursite.com/sitemap.xml")
}

func TestEmit_NilContent(t *testing.T) {
	_, err := Emit(nil, brand, Options{})
	require.Error(t, err)
}

var ldScript = regexp.MustCompile(`(?s)<script type="application/ld\+json">(.*?)</script>`)

func jsonLD(t *testing.T, html string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range ldScript.FindAllStringSubmatch(html, -1) {
		var v map[string]any
		require.NoError(t, json.Unmarshal([]byte(m[1]), &v), m[1])
		out = append(out, v)
	}
	return out
}
