package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
	"github.com/spf13/cobra"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List ledger runs, or show the generations of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Ledger.Backend != "sqlite" {
				logger.Warn("the memory ledger does not outlive a run; configure ledger.backend: sqlite")
			}
			ledger, err := store.Open(cmd.Context(), cfg.Ledger.Backend, cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if len(args) == 1 {
				return showRun(cmd.Context(), cmd.OutOrStdout(), ledger, args[0])
			}
			return listRuns(cmd.Context(), cmd.OutOrStdout(), ledger, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "maximum runs to list")
	return cmd
}

func listRuns(ctx context.Context, w io.Writer, ledger store.Store, limit int) error {
	runs, err := ledger.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSEARCH\tBEST\tEVALUATIONS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%d\t%s\n",
			r.ID, r.Status, r.Search, r.BestFitness, r.Evaluations, r.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func showRun(ctx context.Context, w io.Writer, ledger store.Store, id string) error {
	run, err := ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	gens, err := ledger.Generations(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "run:          %s\n", run.ID)
	fmt.Fprintf(w, "status:       %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "error:        %s\n", run.Error)
	}
	fmt.Fprintf(w, "search:       %s\n", run.Search)
	fmt.Fprintf(w, "workers:      %d\n", run.Workers)
	fmt.Fprintf(w, "best fitness: %.6f\n", run.BestFitness)
	fmt.Fprintf(w, "best genes:   %v\n", run.BestGenes)
	fmt.Fprintf(w, "evaluations:  %d\n", run.Evaluations)
	if !run.StartedAt.IsZero() && !run.EndedAt.IsZero() {
		fmt.Fprintf(w, "elapsed:      %s\n", run.EndedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "GEN\tBEST GEN\tBEST GLOBAL\t")
	for _, g := range gens {
		fmt.Fprintf(tw, "%d\t%.6f\t%.6f\t\n", g.Generation, g.BestThisGen, g.BestOverall)
	}
	return tw.Flush()
}
