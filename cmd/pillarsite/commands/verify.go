package commands

import (
	"fmt"

	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/linkverify"
)

// VerifyCmd implements the 'verify' command.
type VerifyCmd struct {
	Dir     string `arg:"" optional:"" help:"Site directory (defaults to output.directory)" type:"path"`
	BaseURL string `name:"base-url" help:"Site origin; absolute links to it are checked too (defaults to site.base_url)"`
}

func (v *VerifyCmd) Run(glob *Global, root *CLI) error {
	dir, base := v.Dir, v.BaseURL
	if dir == "" || base == "" {
		cfg, err := root.LoadConfig()
		if err != nil && !errors.HasCategory(err, errors.CategoryNotFound) {
			return err
		}
		if dir == "" {
			dir = config.DefaultOutputDir
			if cfg != nil {
				dir = cfg.Output.Directory
			}
		}
		if base == "" {
			base = config.DefaultBaseURL
			if cfg != nil {
				base = cfg.Site.BaseURL
			}
		}
	}

	report, err := linkverify.VerifyDir(dir, base)
	if err != nil {
		return err
	}
	out := glob.Out()
	_, _ = fmt.Fprintf(out, "Checked %d links in %d documents (%d external skipped)\n",
		report.Checked, report.Documents, report.External)
	for _, b := range report.Broken {
		_, _ = fmt.Fprintf(out, "  %s: <%s> %s -> %s\n", b.Source, b.Tag, b.Href, b.Target)
	}
	if err := report.Err(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "No broken links")
	return nil
}
