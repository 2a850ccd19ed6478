package commands

import (
	"fmt"

	"git.home.luguber.info/inful/pillarsite/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (VersionCmd) Run(glob *Global) error {
	_, err := fmt.Fprintln(glob.Out(), version.String())
	return err
}
