package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pillarsite/cmd/pillarsite/commands"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("pillarsite"),
		kong.Description("Generate a pillar/cluster content site from one seed keyword."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	if err := parser.Run(&commands.Global{Logger: slog.Default()}, cli); err != nil {
		os.Exit(errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(os.Stderr, err))
	}
}
