package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/archive"
	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/server"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Dir     string `arg:"" optional:"" help:"Site directory (defaults to output.directory)" type:"path"`
	Addr    string `short:"a" help:"Listen address (defaults to daemon.addr)"`
	Archive bool   `help:"Serve the latest archived run instead of a directory"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	switch {
	case err == nil:
	case errors.HasCategory(err, errors.CategoryNotFound) && !s.Archive:
		ex := config.Example()
		cfg = &ex
	default:
		return err
	}

	opts := server.Options{Logger: slog.Default(), MetricsPath: cfg.Monitoring.Metrics.Path}
	if cfg.Archive.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := archive.Open(ctx, string(cfg.Archive.Driver), cfg.Archive.DSN)
		cancel()
		if err != nil {
			return err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				slog.Warn("Failed to close archive", logfields.Error(cerr))
			}
		}()
		opts.Archive = store
	} else if s.Archive {
		return errors.ConfigError("--archive requires archive.enabled").Build()
	}
	if !s.Archive {
		opts.Dir = s.Dir
		if opts.Dir == "" {
			opts.Dir = cfg.Output.Directory
		}
	}
	if cfg.Monitoring.Metrics.Enabled {
		opts.Registry = metrics.NewRegistry()
	}

	addr := s.Addr
	if addr == "" {
		addr = cfg.Daemon.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(opts)
	if err := srv.Start(ctx, addr); err != nil {
		return err
	}
	slog.Info("Serving site", slog.String("addr", srv.Addr()), logfields.Path(opts.Dir), slog.Bool("archive", opts.Dir == ""))

	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping server")
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(stopCtx)
}
