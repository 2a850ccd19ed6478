package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

// Request stages. Planner requests carry one of these via WithStage.
const (
	StagePillarTopics  = "pillar_topics"
	StageClusterTopics = "cluster_topics"
	StagePillarBody    = "pillar_body"
	StageClusterBody   = "cluster_body"
)

var (
	stubCount  = regexp.MustCompile(`Generate (\d+)`)
	stubQuoted = regexp.MustCompile(`"([^"\n]+)"`)
	stubBrand  = regexp.MustCompile(`(?m)^- Brand: (.+)$`)
)

// Stub produces deterministic offline content shaped like real responses. It is used
// for dry runs and demos and counts the requests it served.
type Stub struct {
	calls atomic.Int64
}

func NewStub() *Stub { return &Stub{} }

// Calls returns the number of Complete calls served.
func (s *Stub) Calls() int { return int(s.calls.Load()) }

func (s *Stub) Complete(ctx context.Context, prompt string, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify(err, "stub", 0)
	}
	s.calls.Add(1)

	subject := firstMatch(stubQuoted, prompt, "Topic")
	switch StageFrom(ctx) {
	case StagePillarTopics:
		return stubTopics(prompt, subject, func(i int, name string) any {
			return map[string]string{
				"title":         name,
				"slug":          name,
				"description":   "Everything you need to know about " + strings.ToLower(name) + ".",
				"focus_keyword": strings.ToLower(name),
			}
		}, "Guide"), nil
	case StageClusterTopics:
		return stubTopics(prompt, subject, func(i int, name string) any {
			return map[string]string{
				"title":       name,
				"slug":        name,
				"keyword":     strings.ToLower(name),
				"description": "A focused look at " + strings.ToLower(name) + ".",
			}
		}, "Question"), nil
	case StagePillarBody:
		brand := firstMatch(stubBrand, prompt, "Us")
		return stubBody(subject, 6) + fmt.Sprintf("\n\n## How %s Can Help\n\n%s helps you put **%s** into practice.", brand, brand, subject), nil
	default:
		return stubBody(subject, 3), nil
	}
}

func stubTopics(prompt, subject string, item func(int, string) any, noun string) string {
	n := 1
	if m := stubCount.FindStringSubmatch(prompt); m != nil {
		n, _ = strconv.Atoi(m[1])
	}
	items := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, item(i, fmt.Sprintf("%s %s %d", subject, noun, i)))
	}
	data, _ := json.MarshalIndent(items, "", "  ")
	return "```json\n" + string(data) + "\n```"
}

func stubBody(title string, sections int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nThis guide covers *%s* from first principles to advanced practice.", title, title)
	for i := 1; i <= sections; i++ {
		fmt.Fprintf(&b, "\n\n## Section %d\n\nKey points for %s:\n\n- Plan carefully\n- Measure results\n- Iterate often", i, title)
	}
	return b.String()
}

func firstMatch(re *regexp.Regexp, s, fallback string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return fallback
}
