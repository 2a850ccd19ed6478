package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/llm"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

var testBrand = site.BrandProfile{
	Name:             "BeanCo",
	Tagline:          "Better mornings",
	ValueProposition: "Fresh roasted beans delivered",
	Products:         "Subscriptions",
	CallToAction:     "Start your subscription",
}

// recorder wraps a Completer and records prompts per stage.
type recorder struct {
	mu      sync.Mutex
	inner   llm.Completer
	prompts map[string][]string
	tokens  map[string]int
}

func newRecorder(inner llm.Completer) *recorder {
	return &recorder{inner: inner, prompts: map[string][]string{}, tokens: map[string]int{}}
}

func (r *recorder) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	stage := llm.StageFrom(ctx)
	r.mu.Lock()
	r.prompts[stage] = append(r.prompts[stage], prompt)
	r.tokens[stage] = maxTokens
	r.mu.Unlock()
	return r.inner.Complete(ctx, prompt, maxTokens)
}

func (r *recorder) total() int {
	n := 0
	for _, p := range r.prompts {
		n += len(p)
	}
	return n
}

func TestPlan_FullRun(t *testing.T) {
	rec := newRecorder(llm.NewStub())
	p := New(rec, Options{FullArticlesPerPillar: 3})

	var steps []Step
	content, err := p.Plan(t.Context(), Request{Keyword: "coffee", ArticleCount: 30, Brand: testBrand}, func(s Step) {
		steps = append(steps, s)
	})
	require.NoError(t, err)

	require.Len(t, content.Pillars, 2)
	require.Len(t, content.Articles, 30)
	assert.Equal(t, "coffee", content.Keyword)

	// 1 topics + 2 cluster lists + 2 pillar bodies + 2×3 cluster bodies.
	assert.Equal(t, 11, rec.total())
	assert.Len(t, rec.prompts[llm.StageClusterBody], 6)
	assert.Equal(t, 24, content.PlaceholderCount())

	for _, pillar := range content.Pillars {
		arts := content.ArticlesFor(pillar.Slug)
		require.Len(t, arts, 15)
		for j, a := range arts {
			if j < 3 {
				assert.False(t, a.IsPlaceholder, "article %d of %s", j, pillar.Slug)
				continue
			}
			assert.True(t, a.IsPlaceholder)
			assert.Equal(t, PlaceholderBody(a.ClusterTopic), a.Body)
			assert.Contains(t, a.Body, a.Title)
			assert.Contains(t, a.Body, a.Description)
		}
	}

	units := 0
	for _, s := range steps {
		units += s.Units
	}
	// Every request and placeholder advances progress; site assembly is left to the caller.
	assert.Equal(t, 1+2+2+30, units)
	assert.Equal(t, StagePillarTopics, steps[0].Stage)
	assert.Equal(t, StageClusterBodies, steps[len(steps)-1].Stage)

	assert.Equal(t, 4000, rec.tokens[llm.StagePillarTopics])
	assert.Equal(t, 16000, rec.tokens[llm.StagePillarBody])
	assert.Equal(t, 8000, rec.tokens[llm.StageClusterBody])
}

func TestPlan_PromptsCarryContext(t *testing.T) {
	rec := newRecorder(llm.NewStub())
	_, err := New(rec, Options{FullArticlesPerPillar: 1}).Plan(t.Context(),
		Request{Keyword: "coffee", ArticleCount: 20, Brand: testBrand}, nil)
	require.NoError(t, err)

	topics := rec.prompts[llm.StagePillarTopics][0]
	assert.Contains(t, topics, `Generate 2 distinct pillar page topics related to the keyword: "coffee".`)
	assert.Contains(t, topics, "Be broad enough for 10 detailed articles")

	clusters := rec.prompts[llm.StageClusterTopics][0]
	assert.Contains(t, clusters, `Generate 10 cluster article topics for the pillar: "coffee Guide 1" (keyword: coffee guide 1).`)

	body := rec.prompts[llm.StagePillarBody][0]
	assert.Contains(t, body, "- Brand: BeanCo")
	assert.Contains(t, body, `Add a section "How BeanCo Can Help"`)
	assert.Contains(t, body, "coffee Guide 1 Question 5")
	assert.NotContains(t, body, "coffee Guide 1 Question 6")

	cluster := rec.prompts[llm.StageClusterBody][0]
	assert.Contains(t, cluster, `This article supports the pillar: "coffee Guide 1"`)
	assert.Contains(t, cluster, "- BeanCo: Fresh roasted beans delivered")
}

func TestPlan_FullArticleLimitIsConfigurable(t *testing.T) {
	rec := newRecorder(llm.NewStub())
	content, err := New(rec, Options{FullArticlesPerPillar: 0}).Plan(t.Context(),
		Request{Keyword: "tea", ArticleCount: 10, Brand: testBrand}, nil)
	require.NoError(t, err)
	assert.Empty(t, rec.prompts[llm.StageClusterBody])
	assert.Equal(t, 10, content.PlaceholderCount())
}

func TestPlan_FewerClustersThanLimit(t *testing.T) {
	// 4 articles over 2 pillars leaves 2 per pillar, below the default limit of 3.
	content, err := New(llm.NewStub(), Options{FullArticlesPerPillar: 3}).Plan(t.Context(),
		Request{Keyword: "tea", ArticleCount: 4, Brand: testBrand}, nil)
	require.NoError(t, err)
	assert.Len(t, content.Articles, 4)
	assert.Zero(t, content.PlaceholderCount())
}

// scripted answers topic and cluster requests with fixed JSON.
func scripted(topics, clusters string) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, _ string, _ int) (string, error) {
		switch llm.StageFrom(ctx) {
		case llm.StagePillarTopics:
			return topics, nil
		case llm.StageClusterTopics:
			return clusters, nil
		default:
			return "# Body\n\nText", nil
		}
	})
}

func TestPlan_ParseFailureIsFatal(t *testing.T) {
	calls := 0
	api := llm.CompleterFunc(func(ctx context.Context, _ string, _ int) (string, error) {
		calls++
		return "Sure! Here are your topics: [oops", nil
	})
	content, err := New(api, Options{}).Plan(t.Context(), Request{Keyword: "x", ArticleCount: 10}, nil)
	require.Error(t, err)
	assert.Nil(t, content)
	assert.Equal(t, 1, calls)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryParse, ce.Category())
	stage, _ := ce.Context().GetString("stage")
	assert.Equal(t, llm.StagePillarTopics, stage)
}

func TestPlan_GenerationFailureAborts(t *testing.T) {
	calls := 0
	api := llm.CompleterFunc(func(ctx context.Context, p string, n int) (string, error) {
		calls++
		if llm.StageFrom(ctx) == llm.StagePillarBody {
			return "", fmt.Errorf("503 service unavailable")
		}
		return llm.NewStub().Complete(ctx, p, n)
	})
	content, err := New(api, Options{FullArticlesPerPillar: 3}).Plan(t.Context(), Request{Keyword: "x", ArticleCount: 10}, nil)
	require.Error(t, err)
	assert.Nil(t, content)
	assert.True(t, errors.HasCategory(err, errors.CategoryGeneration))
	assert.Equal(t, 4, calls, "topics, two cluster lists, first pillar body")
}

func TestPlan_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	api := llm.CompleterFunc(func(c context.Context, p string, n int) (string, error) {
		if llm.StageFrom(c) == llm.StageClusterTopics {
			cancel()
		}
		return llm.NewStub().Complete(context.WithoutCancel(c), p, n)
	})
	_, err := New(api, Options{}).Plan(ctx, Request{Keyword: "x", ArticleCount: 10}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryCanceled))
}

func TestPlan_NormalizesTopics(t *testing.T) {
	topics := "```json\n" + mustJSON(t, []map[string]string{
		{"title": "Café Basics", "slug": "Café Basics!", "description": strings.Repeat("long ", 60)},
		{"title": "Brewing", "slug": "cafe-basics", "focus_keyword": "brewing"},
		{"title": "Extra", "slug": "extra"},
	}) + "\n```"
	clusters := mustJSON(t, []map[string]string{
		{"title": "One", "slug": "same"},
		{"title": "Two", "slug": "same"},
		{"title": "Three", "slug": ""},
	})

	content, err := New(scripted(topics, clusters), Options{FullArticlesPerPillar: 1}).Plan(t.Context(),
		Request{Keyword: "coffee", ArticleCount: 6}, nil)
	require.NoError(t, err)

	// Over-delivery of pillars (3 for 2) is truncated.
	require.Len(t, content.Pillars, 2)
	assert.Equal(t, "cafe-basics", content.Pillars[0].Slug)
	assert.Equal(t, "cafe-basics-2", content.Pillars[1].Slug)
	assert.LessOrEqual(t, len([]rune(content.Pillars[0].Description)), site.MaxDescriptionLength)
	assert.Equal(t, "coffee", content.Pillars[0].FocusKeyword)

	slugs := make([]string, 0, len(content.Articles))
	for _, a := range content.Articles {
		slugs = append(slugs, a.Slug)
	}
	assert.Equal(t, []string{"same", "same-2", "three", "same-3", "same-4", "three-2"}, slugs)
	require.NoError(t, content.Validate())
}

func TestPlan_UnderDeliveryAccepted(t *testing.T) {
	topics := mustJSON(t, []map[string]string{{"title": "Only", "slug": "only"}})
	clusters := mustJSON(t, []map[string]string{{"title": "A", "slug": "a"}})
	content, err := New(scripted(topics, clusters), Options{FullArticlesPerPillar: 3}).Plan(t.Context(),
		Request{Keyword: "k", ArticleCount: 10}, nil)
	require.NoError(t, err)
	assert.Len(t, content.Pillars, 1)
	assert.Len(t, content.Articles, 1)
}

func TestPlan_NoTopics(t *testing.T) {
	_, err := New(scripted("[]", "[]"), Options{}).Plan(t.Context(), Request{Keyword: "k", ArticleCount: 10}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryGeneration))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
