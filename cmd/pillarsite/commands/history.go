package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/pillarsite/internal/archive"
	"git.home.luguber.info/inful/pillarsite/internal/config"
	"git.home.luguber.info/inful/pillarsite/internal/eventstore"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string `arg:"" optional:"" name:"run-id" help:"Show the recorded events of one run"`
	Limit int    `short:"l" default:"20" help:"Maximum number of runs to list"`
}

func (h *HistoryCmd) Run(glob *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	if h.Limit < 1 {
		return errors.ValidationError("limit must be at least 1").WithContext("limit", h.Limit).Build()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := glob.Out()
	switch {
	case cfg.Events.StorePath != "":
		return h.fromEvents(ctx, out, cfg)
	case cfg.Archive.Enabled:
		return h.fromArchive(ctx, out, cfg)
	default:
		return errors.ConfigError("no run history configured; set events.store_path or enable the archive").Build()
	}
}

func (h *HistoryCmd) fromEvents(ctx context.Context, out io.Writer, cfg *config.Config) error {
	store, err := eventstore.NewSQLiteStore(cfg.Events.StorePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Failed to close event store", logfields.Error(cerr))
		}
	}()

	if h.RunID != "" {
		events, err := store.GetByRunID(ctx, h.RunID)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return errors.NotFoundError("no events recorded for run").WithContext("run_id", h.RunID).Build()
		}
		return printEvents(out, events)
	}

	proj := eventstore.NewRunHistoryProjection(store, h.Limit)
	if err := proj.Rebuild(ctx); err != nil {
		return err
	}
	runs := proj.History()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	return printSummaries(out, runs)
}

func (h *HistoryCmd) fromArchive(ctx context.Context, out io.Writer, cfg *config.Config) error {
	store, err := archive.Open(ctx, string(cfg.Archive.Driver), cfg.Archive.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Failed to close archive", logfields.Error(cerr))
		}
	}()

	if h.RunID != "" {
		b, err := store.Bundle(ctx, h.RunID)
		if err != nil {
			return err
		}
		for _, p := range b.Paths() {
			_, _ = fmt.Fprintln(out, p)
		}
		return nil
	}

	runs, err := store.List(ctx, h.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs archived")
		return nil
	}
	return printArchived(out, runs)
}

func printEvents(out io.Writer, events []eventstore.Event) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tTYPE\tPAYLOAD")
	for _, ev := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", ev.Timestamp().Format(time.RFC3339), ev.Type(), ev.Payload())
	}
	return tw.Flush()
}

func printSummaries(out io.Writer, runs []eventstore.RunSummary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tSTATUS\tKEYWORD\tSTARTED\tDURATION\tFILES\tERROR")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RunID, r.Status, r.Keyword, r.StartedAt.Format(time.RFC3339),
			r.Duration.Round(time.Millisecond), r.Files, r.ErrorMessage)
	}
	return tw.Flush()
}

func printArchived(out io.Writer, runs []archive.Run) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tKEYWORD\tBRAND\tCREATED\tFILES\tARTICLES\tPLACEHOLDERS")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.RunID, r.Keyword, r.Brand, r.CreatedAt.Format(time.RFC3339),
			r.Files, r.Articles, r.Placeholders)
	}
	return tw.Flush()
}
