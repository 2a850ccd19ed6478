package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pillarsite/internal/config"
)

// Global is bound into every command's Run method.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

// Out returns the command output writer.
func (g *Global) Out() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"pillarsite.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text or json); overrides the config file"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" help:"Generate a pillar/cluster site from the configured keyword and brand"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	Plan     PlanCmd     `cmd:"" help:"Show how many pillars and articles a target count produces, without any API request"`
	Verify   VerifyCmd   `cmd:"" help:"Check a written site for broken internal links"`
	Serve    ServeCmd    `cmd:"" help:"Serve a written site or the latest archived site over HTTP"`
	Daemon   DaemonCmd   `cmd:"" help:"Regenerate the site on a schedule and serve it"`
	History  HistoryCmd  `cmd:"" help:"List recorded generation runs or show the events of one run"`
	Show     VersionCmd  `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing and installs the default logger.
// Commands that load a configuration file re-apply its logging section.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	setupLogging(c.Verbose, config.LogLevelInfo, config.LogFormat(c.LogFormat))
	return nil
}

// LoadConfig reads the --config file and applies its logging settings. The
// --verbose and --log-format flags win over the file.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	format := cfg.Monitoring.Logging.Format
	if c.LogFormat != "" {
		format = config.LogFormat(c.LogFormat)
	}
	setupLogging(c.Verbose, cfg.Monitoring.Logging.Level, format)
	return cfg, nil
}

func setupLogging(verbose bool, level config.LogLevel, format config.LogFormat) {
	lvl := level.SlogLevel()
	if verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == config.LogFormatJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
