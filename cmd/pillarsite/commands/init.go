package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"git.home.luguber.info/inful/pillarsite/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Directory to write pillarsite.yaml into (defaults to --config)"`
}

func (i *InitCmd) Run(glob *Global, root *CLI) error {
	path := root.Config
	if i.Output != "" {
		path = filepath.Join(i.Output, config.DefaultPath)
	}
	return RunInit(glob.Out(), path, i.Force)
}

// RunInit writes the example configuration to configPath.
func RunInit(w io.Writer, configPath string, force bool) error {
	_, _ = fmt.Fprintln(w, "Initializing pillarsite project")
	_, _ = fmt.Fprintf(w, "Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		_, _ = fmt.Fprintln(w, "Initialization failed")
		return err
	}
	_, _ = fmt.Fprintln(w, "Initialized successfully. Set site.keyword and brand, then run: pillarsite generate")
	return nil
}
