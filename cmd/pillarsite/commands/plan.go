package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/planner"
)

// PlanCmd implements the 'plan' command. It never contacts the generative API.
type PlanCmd struct {
	Count int  `short:"n" name:"count" help:"Target article count (defaults to site.article_count)"`
	Full  int  `name:"full" help:"Full articles per pillar (defaults to generator.full_articles_per_pillar)"`
	JSON  bool `name:"json" help:"Print the plan as JSON"`
}

// PlanSummary is the allocation plus the request and placeholder counts it implies.
type PlanSummary struct {
	planner.Allocation
	FullPerPillar int `json:"full_per_pillar"`
	FullArticles  int `json:"full_articles"`
	Placeholders  int `json:"placeholders"`
	Requests      int `json:"requests"`
}

// Summarize computes the plan for n articles with full complete bodies per pillar.
func Summarize(n, full int) PlanSummary {
	a := planner.Allocate(n)
	perPillarFull := min(full, a.PerPillar)
	return PlanSummary{
		Allocation:    a,
		FullPerPillar: perPillarFull,
		FullArticles:  a.Pillars * perPillarFull,
		Placeholders:  a.Planned - a.Pillars*perPillarFull,
		// pillar topics, cluster topics and pillar body per pillar, then full cluster bodies
		Requests: 1 + 2*a.Pillars + a.Pillars*perPillarFull,
	}
}

func (p *PlanCmd) Run(glob *Global, root *CLI) error {
	count, full := p.Count, p.Full
	if count == 0 || full == 0 {
		cfg, err := root.LoadConfig()
		switch {
		case err == nil:
			if count == 0 {
				count = cfg.Site.ArticleCount
			}
			if full == 0 {
				full = cfg.Generator.FullArticlesPerPillar
			}
		case errors.HasCategory(err, errors.CategoryNotFound):
			if count == 0 {
				count = config.DefaultArticleCount
			}
			if full == 0 {
				full = config.DefaultFullArticlesPerPillar
			}
		default:
			return err
		}
	}
	if count < 1 {
		return errors.ValidationError("article count must be at least 1").WithContext("count", count).Build()
	}
	if full < 0 {
		return errors.ValidationError("full articles per pillar cannot be negative").WithContext("full", full).Build()
	}

	s := Summarize(count, full)
	out := glob.Out()
	if p.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Target articles\t%d\n", s.Target)
	_, _ = fmt.Fprintf(tw, "Pillars\t%d\n", s.Pillars)
	_, _ = fmt.Fprintf(tw, "Articles per pillar\t%d\n", s.PerPillar)
	_, _ = fmt.Fprintf(tw, "Planned articles\t%d\n", s.Planned)
	_, _ = fmt.Fprintf(tw, "Dropped remainder\t%d\n", s.Dropped)
	_, _ = fmt.Fprintf(tw, "Full articles\t%d (%d per pillar)\n", s.FullArticles, s.FullPerPillar)
	_, _ = fmt.Fprintf(tw, "Placeholders\t%d\n", s.Placeholders)
	_, _ = fmt.Fprintf(tw, "API requests\t%d\n", s.Requests)
	_, _ = fmt.Fprintf(tw, "Progress units\t%d\n", s.TotalUnits)
	return tw.Flush()
}
