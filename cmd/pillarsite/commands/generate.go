package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/app"
	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/orchestrator"
)

// GenerateCmd implements the 'generate' command.
type GenerateCmd struct {
	Keyword  string `short:"k" help:"Seed keyword (overrides site.keyword)"`
	Count    int    `short:"n" name:"count" help:"Target article count (overrides site.article_count)"`
	Brand    string `name:"brand" help:"Brand name (overrides brand.name)"`
	Output   string `short:"o" help:"Output directory (overrides output.directory)" type:"path"`
	BaseURL  string `name:"base-url" help:"Site origin used in sitemap, llms.txt and structured data"`
	Provider string `name:"provider" help:"Generator provider: anthropic, openai or stub"`
	DryRun   bool   `name:"dry-run" help:"Generate without writing, archiving or publishing"`
	Quiet    bool   `short:"q" help:"Do not print progress"`
}

func (g *GenerateCmd) Run(glob *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if err := g.apply(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{SkipDelivery: g.DryRun, Logger: slog.Default()})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			slog.Warn("Failed to close resources", logfields.Error(cerr))
		}
	}()

	out := glob.Out()
	var observe orchestrator.Observer
	if !g.Quiet {
		observe = progressPrinter(out)
	}
	res, err := a.Orchestrator.Run(ctx, a.Request(), observe)
	if err != nil {
		return err
	}
	printSummary(out, cfg, res, g.DryRun)
	return nil
}

// apply layers flag overrides onto cfg and re-validates it.
func (g *GenerateCmd) apply(cfg *config.Config) error {
	if g.Keyword != "" {
		cfg.Site.Keyword = g.Keyword
	}
	if g.Count != 0 {
		cfg.Site.ArticleCount = g.Count
	}
	if g.Brand != "" {
		cfg.Brand.Name = g.Brand
	}
	if g.Output != "" {
		cfg.Output.Directory = g.Output
	}
	if g.BaseURL != "" {
		cfg.Site.BaseURL = g.BaseURL
	}
	if g.Provider != "" && g.Provider != string(cfg.Generator.Provider) {
		cfg.Generator.Provider = config.Provider(g.Provider)
		cfg.Generator.Model = ""
	}
	for _, w := range config.Normalize(cfg) {
		slog.Warn("Flag normalized", slog.String("detail", w))
	}
	config.ApplyDefaults(cfg)
	return config.Validate(cfg)
}

func progressPrinter(w io.Writer) orchestrator.Observer {
	last := ""
	return func(p orchestrator.Progress) {
		pct := 0
		if p.Total > 0 {
			pct = p.Current * 100 / p.Total
		}
		if p.Stage != last {
			last = p.Stage
			_, _ = fmt.Fprintf(w, "[%3d%%] %s\n", pct, p.Stage)
			return
		}
		_, _ = fmt.Fprintf(w, "[%3d%%] %d/%d\n", pct, p.Current, p.Total)
	}
}

func printSummary(w io.Writer, cfg *config.Config, res *orchestrator.Result, dryRun bool) {
	c := res.Content
	_, _ = fmt.Fprintf(w, "\nRun %s finished in %s\n", res.RunID, res.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  pillars:      %d\n", len(c.Pillars))
	_, _ = fmt.Fprintf(w, "  articles:     %d (%d placeholders)\n", len(c.Articles), c.PlaceholderCount())
	if res.Allocation.Dropped > 0 {
		_, _ = fmt.Fprintf(w, "  dropped:      %d (target %d not divisible by %d pillars)\n",
			res.Allocation.Dropped, res.Allocation.Target, res.Allocation.Pillars)
	}
	_, _ = fmt.Fprintf(w, "  files:        %d\n", len(res.Bundle.Files))
	if res.Links != nil && !res.Links.OK() {
		_, _ = fmt.Fprintf(w, "  broken links: %d\n", len(res.Links.Broken))
	}
	if dryRun {
		_, _ = fmt.Fprintln(w, "  dry run: nothing written")
		return
	}
	_, _ = fmt.Fprintf(w, "  written to:   %s\n", cfg.Output.Directory)
	if res.Published != nil && res.Published.Changed {
		_, _ = fmt.Fprintf(w, "  committed:    %s (pushed: %t)\n", res.Published.Commit, res.Published.Pushed)
	}
}
