package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/agent-deploy/internal/agentconfig"
	"github.com/hochfrequenz/agent-deploy/internal/domain"
	"github.com/hochfrequenz/agent-deploy/internal/history"
	"github.com/hochfrequenz/agent-deploy/internal/watch"
)

func (a *app) configureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Set the catalog and schema in the agent's config.yaml",
		Args:  noPositionalArgs,
		RunE:  a.runConfigure,
	}
	cmd.Flags().StringVar(&a.configureCatalog, "catalog", "", "Unity Catalog catalog (default from [workspace] catalog)")
	cmd.Flags().StringVar(&a.configureSchema, "schema", "", "Unity Catalog schema (default from [workspace] schema)")
	cmd.Flags().StringVar(&a.configureFile, "file", agentconfig.DefaultFile, "agent config file, relative to the bundle root")
	cmd.Flags().BoolVar(&a.configureShow, "show", false, "print the current catalog and schema without changing them")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-validate the bundle whenever its sources change",
		Args:  noPositionalArgs,
		RunE:  a.runWatch,
	}
	cmd.Flags().StringVar(&a.watchProfile, "profile", "", "Databricks CLI profile")
	cmd.Flags().DurationVar(&a.watchDebounce, "debounce", 500*time.Millisecond, "quiet period before re-validating")
	return cmd
}

func (a *app) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent workflow runs",
		Args:  noPositionalArgs,
		RunE:  a.runHistory,
	}
	cmd.Flags().IntVar(&a.historyLimit, "limit", 10, "number of runs to show")
	cmd.Flags().StringVar(&a.historyStatus, "status", "", "filter by status (succeeded, failed)")
	return cmd
}

func (a *app) bundlePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cfg.Bundle.Root, p)
}

func (a *app) runConfigure(cmd *cobra.Command, args []string) error {
	if err := requireValues(cmd.Flags()); err != nil {
		return err
	}

	path := a.bundlePath(a.configureFile)
	if a.configureShow {
		cur, err := agentconfig.Read(path)
		if err != nil {
			return err
		}
		a.reporter.Info("current catalog: %s, schema: %s", orNone(cur.Catalog), orNone(cur.Schema))
		return nil
	}

	loc := agentconfig.Location{
		Catalog: a.configureCatalog,
		Schema:  a.configureSchema,
	}
	if loc.Catalog == "" {
		loc.Catalog = a.cfg.Workspace.Catalog
	}
	if loc.Schema == "" {
		loc.Schema = a.cfg.Workspace.Schema
	}

	prev, err := agentconfig.Update(path, loc)
	if err != nil {
		return err
	}

	a.reporter.Info("current catalog: %s, schema: %s", orNone(prev.Catalog), orNone(prev.Schema))
	a.reporter.Success("updated catalog: %s, schema: %s in %s", loc.Catalog, loc.Schema, path)
	return nil
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	if err := requireValues(cmd.Flags()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes := make(chan []string, 1)
	bw, err := watch.NewBundleWatcher(a.cfg.Bundle.Root, func(files []string) {
		select {
		case changes <- files:
		default:
			// a validation is already queued
		}
	})
	if err != nil {
		return err
	}
	bw.SetDebounce(a.watchDebounce)
	bw.Start(ctx)
	defer bw.Stop()

	return a.watchLoop(ctx, changes)
}

// watchLoop validates once, then again for every batch of changes until ctx ends.
// Validation failures are reported but do not stop the loop.
func (a *app) watchLoop(ctx context.Context, changes <-chan []string) error {
	exec := a.executor()
	var runs, failed int
	validate := func() {
		runs++
		if _, err := exec.ValidateOnly(ctx, a.watchProfile); err != nil {
			failed++
			a.log.WithError(err).Debug("validation failed, waiting for the next change")
		}
	}

	a.reporter.Info("Watching %s for bundle changes (Ctrl+C to stop)", a.cfg.Bundle.Root)
	validate()

	for {
		select {
		case <-ctx.Done():
			a.reporter.Info("Stopped watching after %d validation(s), %d failed", runs, failed)
			return nil
		case files := <-changes:
			a.reporter.Info("Detected changes in %d file(s): %s", len(files), shortList(a.cfg.Bundle.Root, files))
			validate()
		}
	}
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	if !a.cfg.History.Enabled {
		a.reporter.Warning("Run history is disabled. Set enabled = true under [history] in the config.")
		return nil
	}

	store, err := history.New(a.cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(history.ListOptions{
		Status: domain.RunStatus(a.historyStatus),
		Limit:  a.historyLimit,
	})
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		a.reporter.Info("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(a.opts.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tTARGET\tSTATUS\tDURATION\tPHASES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			r.Target,
			r.Status,
			r.Duration().Round(time.Second),
			phaseSummary(r.Phases),
		)
	}
	return w.Flush()
}

func phaseSummary(phases []domain.PhaseResult) string {
	parts := make([]string, 0, len(phases))
	for _, p := range phases {
		mark := "ok"
		switch p.Status {
		case domain.PhaseSkipped:
			mark = "skip"
		case domain.PhaseFailed:
			mark = "FAIL"
		}
		parts = append(parts, string(p.Phase)+"="+mark)
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortList(root string, files []string) string {
	const shown = 3
	names := make([]string, 0, shown+1)
	for i, f := range files {
		if i == shown {
			names = append(names, fmt.Sprintf("and %d more", len(files)-shown))
			break
		}
		if rel, err := filepath.Rel(root, f); err == nil {
			f = rel
		}
		names = append(names, f)
	}
	return strings.Join(names, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
