package emit

import (
	"encoding/json"
	"html/template"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

const schemaContext = "https://schema.org"

type ldOrganization struct {
	Context     string `json:"@context,omitempty"`
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type ldArticle struct {
	Context       string         `json:"@context"`
	Type          string         `json:"@type"`
	Headline      string         `json:"headline"`
	Description   string         `json:"description,omitempty"`
	Keywords      string         `json:"keywords,omitempty"`
	URL           string         `json:"url"`
	DatePublished string         `json:"datePublished"`
	Author        ldOrganization `json:"author"`
	Publisher     ldOrganization `json:"publisher"`
}

type ldListItem struct {
	Type     string `json:"@type"`
	Position int    `json:"position"`
	Name     string `json:"name"`
	Item     string `json:"item,omitempty"`
}

type ldBreadcrumbs struct {
	Context string       `json:"@context"`
	Type    string       `json:"@type"`
	Items   []ldListItem `json:"itemListElement"`
}

type crumb struct {
	name string
	url  string
}

func organizationLD(b site.BrandProfile, baseURL string) ldOrganization {
	return ldOrganization{
		Context:     schemaContext,
		Type:        "Organization",
		Name:        b.Name,
		Description: b.Tagline,
		URL:         baseURL + "/",
	}
}

func articleLD(headline, description, keywords, url string, b site.BrandProfile, date time.Time) ldArticle {
	org := ldOrganization{Type: "Organization", Name: b.Name}
	return ldArticle{
		Context:       schemaContext,
		Type:          "Article",
		Headline:      headline,
		Description:   description,
		Keywords:      keywords,
		URL:           url,
		DatePublished: date.Format(time.DateOnly),
		Author:        org,
		Publisher:     org,
	}
}

// breadcrumbLD lists crumbs in order; the last one is the current page and carries no item.
func breadcrumbLD(crumbs ...crumb) ldBreadcrumbs {
	items := make([]ldListItem, 0, len(crumbs))
	for i, c := range crumbs {
		it := ldListItem{Type: "ListItem", Position: i + 1, Name: c.name}
		if i < len(crumbs)-1 {
			it.Item = c.url
		}
		items = append(items, it)
	}
	return ldBreadcrumbs{Context: schemaContext, Type: "BreadcrumbList", Items: items}
}

// encodeJSONLD marshals v for a <script type="application/ld+json"> block. json.Marshal
// escapes <, > and & so the payload cannot terminate the script element.
func encodeJSONLD(v any) (template.JS, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRender, "failed to encode structured data").Build()
	}
	return template.JS(data), nil //nolint:gosec // JSON with HTML-sensitive characters escaped
}
