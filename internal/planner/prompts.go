package planner

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// MaxSubtopics is how many cluster titles a pillar body prompt names.
const MaxSubtopics = 5

var prompts = template.Must(template.New("prompts").
	Option("missingkey=error").
	Funcs(template.FuncMap{"join": strings.Join}).
	ParseFS(promptFS, "prompts/*.tmpl"))

type topicsPrompt struct {
	Keyword        string
	Count          int
	PerPillar      int
	MaxDescription int
}

type clustersPrompt struct {
	Pillar         site.PillarTopic
	Count          int
	MaxDescription int
}

type pillarBodyPrompt struct {
	Pillar    site.PillarTopic
	Subtopics []string
	Brand     site.BrandProfile
}

type clusterBodyPrompt struct {
	Article site.ClusterTopic
	Pillar  site.PillarTopic
	Brand   site.BrandProfile
}

func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to render prompt").
			WithContext("prompt", name).Build()
	}
	return strings.TrimSpace(buf.String()), nil
}

func subtopics(clusters []site.ClusterTopic) []string {
	n := min(len(clusters), MaxSubtopics)
	out := make([]string, 0, n)
	for _, c := range clusters[:n] {
		out = append(out, c.Title)
	}
	return out
}
