package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/pillarsite/internal/daemon"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	NoWatch bool `name:"no-watch" help:"Do not reload the configuration when the file changes"`
	Now     bool `name:"now" help:"Generate once immediately after start"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if d.Now {
		cfg.Daemon.RunOnStart = true
	}

	opts := daemon.Options{Config: cfg, Logger: slog.Default()}
	if !d.NoWatch {
		opts.ConfigPath = root.Config
	}
	dm, err := daemon.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dm.Start(ctx); err != nil {
		return errors.WrapError(err, errors.GetCategory(err), "failed to start daemon").Build()
	}
	slog.Info("Daemon started, waiting for shutdown signal")

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dm.Stop(stopCtx); err != nil {
		return err
	}
	slog.Info("Daemon stopped")
	return nil
}
