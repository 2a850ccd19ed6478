// Package planner turns a seed keyword into a planned and generated pillar/cluster site.
//
// Planning runs in four strictly sequential stages, each reading only the previous
// stage's output: pillar topics, cluster topics per pillar, pillar bodies, and cluster
// bodies (with placeholders beyond the full-article limit). Every request goes through
// a single llm.Completer.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/llm"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/markdown"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

// Stage names a planning stage.
type Stage string

const (
	StagePillarTopics  Stage = "pillar_topics"
	StageClusterTopics Stage = "cluster_topics"
	StagePillarBodies  Stage = "pillar_bodies"
	StageClusterBodies Stage = "cluster_bodies"
)

// Word targets below which a generated body is reported as short.
const (
	PillarWordTarget  = 3500
	ClusterWordTarget = 2000
)

// Step is reported to the Observer. Units is 0 when a stage starts and 1 for each
// completed request or written placeholder.
type Step struct {
	Stage Stage
	Units int
	Label string
}

// Observer receives planning steps. It must not block.
type Observer func(Step)

// Request is the user input for one run.
type Request struct {
	Keyword      string
	ArticleCount int
	Brand        site.BrandProfile
}

// Limits caps each stage's response size.
type Limits struct {
	Topics      int
	Clusters    int
	PillarBody  int
	ClusterBody int
}

// DefaultLimits matches the configuration defaults.
func DefaultLimits() Limits {
	return Limits{Topics: 4000, Clusters: 4000, PillarBody: 16000, ClusterBody: 8000}
}

// Options tunes a Planner.
type Options struct {
	FullArticlesPerPillar int
	Limits                Limits
	Recorder              metrics.Recorder
	Logger                *slog.Logger
}

// Planner drives the generation stages.
type Planner struct {
	api  llm.Completer
	opts Options
	log  *slog.Logger
	rec  metrics.Recorder
}

// New creates a Planner. Zero limits fall back to DefaultLimits; a negative
// FullArticlesPerPillar is treated as 0.
func New(api llm.Completer, opts Options) *Planner {
	def := DefaultLimits()
	if opts.Limits.Topics <= 0 {
		opts.Limits.Topics = def.Topics
	}
	if opts.Limits.Clusters <= 0 {
		opts.Limits.Clusters = def.Clusters
	}
	if opts.Limits.PillarBody <= 0 {
		opts.Limits.PillarBody = def.PillarBody
	}
	if opts.Limits.ClusterBody <= 0 {
		opts.Limits.ClusterBody = def.ClusterBody
	}
	opts.FullArticlesPerPillar = max(opts.FullArticlesPerPillar, 0)
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Planner{api: api, opts: opts, log: log, rec: metrics.OrNoop(opts.Recorder)}
}

// Plan runs all stages and returns the planned content. Any failed request, unparseable
// response or canceled context aborts the whole plan; no partial content is returned.
func (p *Planner) Plan(ctx context.Context, req Request, observe Observer) (*site.Content, error) {
	if observe == nil {
		observe = func(Step) {}
	}
	alloc := Allocate(req.ArticleCount)

	observe(Step{Stage: StagePillarTopics})
	topics, err := p.pillarTopics(ctx, req, alloc)
	if err != nil {
		return nil, err
	}
	observe(Step{Stage: StagePillarTopics, Units: 1, Label: req.Keyword})

	observe(Step{Stage: StageClusterTopics})
	clusterSlugs := site.NewSlugSet()
	pillars := make([]site.PillarPage, 0, len(topics))
	for _, t := range topics {
		clusters, err := p.clusterTopics(ctx, t, alloc.PerPillar, clusterSlugs)
		if err != nil {
			return nil, err
		}
		pillars = append(pillars, site.PillarPage{PillarTopic: t, Clusters: clusters})
		observe(Step{Stage: StageClusterTopics, Units: 1, Label: t.Slug})
	}

	observe(Step{Stage: StagePillarBodies})
	for i := range pillars {
		body, err := p.pillarBody(ctx, pillars[i], req.Brand)
		if err != nil {
			return nil, err
		}
		pillars[i].Body = body
		observe(Step{Stage: StagePillarBodies, Units: 1, Label: pillars[i].Slug})
	}

	observe(Step{Stage: StageClusterBodies})
	var articles []site.ClusterArticle
	for _, pillar := range pillars {
		full := min(p.opts.FullArticlesPerPillar, len(pillar.Clusters))
		for j, c := range pillar.Clusters {
			art := site.ClusterArticle{ClusterTopic: c, PillarSlug: pillar.Slug}
			if j < full {
				body, err := p.clusterBody(ctx, c, pillar.PillarTopic, req.Brand)
				if err != nil {
					return nil, err
				}
				art.Body = body
			} else {
				art.Body = PlaceholderBody(c)
				art.IsPlaceholder = true
				p.rec.IncPlaceholder()
			}
			articles = append(articles, art)
			observe(Step{Stage: StageClusterBodies, Units: 1, Label: c.Slug})
		}
	}

	content := &site.Content{Keyword: req.Keyword, Pillars: pillars, Articles: articles}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return content, nil
}

// PlaceholderBody is the body of a cluster article that was not generated.
func PlaceholderBody(c site.ClusterTopic) string {
	return fmt.Sprintf("# %s\n\n*Content placeholder - would be generated in production*\n\n%s", c.Title, c.Description)
}

func (p *Planner) pillarTopics(ctx context.Context, req Request, alloc Allocation) ([]site.PillarTopic, error) {
	prompt, err := renderPrompt("pillar_topics", topicsPrompt{
		Keyword:        req.Keyword,
		Count:          alloc.Pillars,
		PerPillar:      alloc.PerPillar,
		MaxDescription: site.MaxDescriptionLength,
	})
	if err != nil {
		return nil, err
	}
	out, err := p.complete(ctx, llm.StagePillarTopics, prompt, p.opts.Limits.Topics)
	if err != nil {
		return nil, err
	}
	var topics []site.PillarTopic
	if err := decodeJSON(out, &topics, llm.StagePillarTopics); err != nil {
		return nil, err
	}
	topics = fitCount(p, topics, alloc.Pillars, llm.StagePillarTopics, req.Keyword)
	if len(topics) == 0 {
		return nil, errors.GenerationError("model returned no pillar topics").
			WithContext("keyword", req.Keyword).Build()
	}

	slugs := site.NewSlugSet()
	for i := range topics {
		t := &topics[i]
		t.Title = strings.TrimSpace(t.Title)
		t.Slug = slugs.Claim(site.SlugFor(t.Slug, t.Title, fmt.Sprintf("pillar-%d", i+1)))
		t.Description = site.TrimDescription(t.Description)
		if strings.TrimSpace(t.FocusKeyword) == "" {
			t.FocusKeyword = req.Keyword
		}
	}
	return topics, nil
}

func (p *Planner) clusterTopics(ctx context.Context, pillar site.PillarTopic, count int, slugs *site.SlugSet) ([]site.ClusterTopic, error) {
	if count <= 0 {
		return nil, nil
	}
	prompt, err := renderPrompt("cluster_topics", clustersPrompt{
		Pillar:         pillar,
		Count:          count,
		MaxDescription: site.MaxDescriptionLength,
	})
	if err != nil {
		return nil, err
	}
	out, err := p.complete(ctx, llm.StageClusterTopics, prompt, p.opts.Limits.Clusters)
	if err != nil {
		return nil, err
	}
	var clusters []site.ClusterTopic
	if err := decodeJSON(out, &clusters, llm.StageClusterTopics); err != nil {
		return nil, err
	}
	clusters = fitCount(p, clusters, count, llm.StageClusterTopics, pillar.Slug)
	for i := range clusters {
		c := &clusters[i]
		c.Title = strings.TrimSpace(c.Title)
		c.Slug = slugs.Claim(site.SlugFor(c.Slug, c.Title, fmt.Sprintf("%s-article-%d", pillar.Slug, i+1)))
		c.Description = site.TrimDescription(c.Description)
		if strings.TrimSpace(c.Keyword) == "" {
			c.Keyword = pillar.FocusKeyword
		}
	}
	return clusters, nil
}

func (p *Planner) pillarBody(ctx context.Context, pillar site.PillarPage, brand site.BrandProfile) (string, error) {
	prompt, err := renderPrompt("pillar_body", pillarBodyPrompt{
		Pillar:    pillar.PillarTopic,
		Subtopics: subtopics(pillar.Clusters),
		Brand:     brand,
	})
	if err != nil {
		return "", err
	}
	out, err := p.complete(ctx, llm.StagePillarBody, prompt, p.opts.Limits.PillarBody)
	if err != nil {
		return "", err
	}
	body := llm.StripCodeFence(out)
	p.inspect("pillar", pillar.Slug, body, PillarWordTarget)
	return body, nil
}

func (p *Planner) clusterBody(ctx context.Context, c site.ClusterTopic, pillar site.PillarTopic, brand site.BrandProfile) (string, error) {
	prompt, err := renderPrompt("cluster_body", clusterBodyPrompt{Article: c, Pillar: pillar, Brand: brand})
	if err != nil {
		return "", err
	}
	out, err := p.complete(ctx, llm.StageClusterBody, prompt, p.opts.Limits.ClusterBody)
	if err != nil {
		return "", err
	}
	body := llm.StripCodeFence(out)
	p.inspect("cluster", c.Slug, body, ClusterWordTarget)
	return body, nil
}

func (p *Planner) complete(ctx context.Context, stage, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.WrapError(err, errors.CategoryCanceled, "run canceled").
			WithContext("stage", stage).Build()
	}
	out, err := p.api.Complete(llm.WithStage(ctx, stage), prompt, maxTokens)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return "", err
		}
		if ctx.Err() != nil {
			return "", errors.WrapError(err, errors.CategoryCanceled, "run canceled").
				WithContext("stage", stage).Build()
		}
		return "", errors.WrapError(err, errors.CategoryGeneration, "generation request failed").
			WithContext("stage", stage).Build()
	}
	return out, nil
}

// fitCount truncates over-delivery and logs under-delivery.
func fitCount[T any](p *Planner, items []T, want int, stage, subject string) []T {
	if len(items) > want {
		p.log.Warn("Model returned more topics than requested; truncating",
			logfields.Stage(stage), logfields.Keyword(subject), logfields.Count(len(items)), logfields.Total(want))
		return items[:want]
	}
	if len(items) < want {
		p.log.Warn("Model returned fewer topics than requested",
			logfields.Stage(stage), logfields.Keyword(subject), logfields.Count(len(items)), logfields.Total(want))
	}
	return items
}

func (p *Planner) inspect(kind, slug, body string, target int) {
	st := markdown.Analyze(body)
	p.rec.ObserveBodyWords(kind, st.Words)
	if st.Words < target {
		p.rec.IncShortBody(kind)
		p.log.Warn("Generated body is below its word target",
			slog.String("kind", kind), logfields.Article(slug), logfields.Words(st.Words), logfields.Total(target))
	}
}

func decodeJSON(raw string, v any, stage string) error {
	cleaned := llm.StripCodeFence(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return errors.WrapError(err, errors.CategoryParse, "model response is not the expected JSON array").
			Fatal().
			WithContext("stage", stage).
			WithContext("response", truncate(cleaned, 200)).
			Build()
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
