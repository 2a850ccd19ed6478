package linkverify

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// Link is a reference found in an HTML document.
type Link struct {
	URL        string
	Text       string
	Tag        string
	Attribute  string
	IsInternal bool
}

// linkAttrs lists the attribute carrying a reference per element.
var linkAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"source": "src",
	"video":  "src",
	"audio":  "src",
}

// ExtractLinks parses an HTML document and returns every reference in it.
func ExtractLinks(r io.Reader, baseURL string) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryParse, "failed to parse HTML").Build()
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "invalid base URL").
			WithContext("base_url", baseURL).
			Build()
	}

	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := linkAttrs[n.Data]; ok {
				if ref := getAttr(n, attr); ref != "" {
					links = append(links, Link{
						URL:        ref,
						Text:       linkText(n),
						Tag:        n.Data,
						Attribute:  attr,
						IsInternal: isInternalLink(ref, base),
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func linkText(n *html.Node) string {
	switch n.Data {
	case "img":
		return getAttr(n, "alt")
	case "link":
		return getAttr(n, "rel")
	}
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(b.String())
}

// isInternalLink reports whether ref points into the site itself.
func isInternalLink(ref string, base *url.URL) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return true
	}
	return base != nil && base.Host != "" && strings.EqualFold(u.Host, base.Host)
}
