package main

import (
	"context"
	"fmt"
	"io"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/calibration"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/metrics"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/project"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/statusd"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/store"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/config"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/logger"
	"github.com/GoSim-25-26J-441/q2k-calibrator/pkg/utils"
	"github.com/spf13/cobra"
)

type calibrateOptions struct {
	preset      string
	generations int
	population  int
	seed        uint64
	workers     int
	runID       string
	outputDir   string
	httpAddr    string
	grpcAddr    string
}

func newCalibrateCommand(root *rootOptions) *cobra.Command {
	opts := &calibrateOptions{}
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Search rate parameters that best reproduce the observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runCalibration(cmd.Context(), cfg, opts.runID, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.preset, "preset", "", "search preset (see presets)")
	f.IntVar(&opts.generations, "generations", 0, "maximum generations, overriding the preset")
	f.IntVar(&opts.population, "population", 0, "population size, overriding the preset")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed for a reproducible search")
	f.IntVar(&opts.workers, "workers", -1, fmt.Sprintf("parallel evaluations (0 means min(%d, CPUs-1))", utils.DefaultWorkers))
	f.StringVar(&opts.runID, "run-id", "", "ledger id for this run")
	f.StringVarP(&opts.outputDir, "output", "o", "", "results directory")
	f.StringVar(&opts.httpAddr, "http-addr", "", "status HTTP listen address")
	f.StringVar(&opts.grpcAddr, "grpc-addr", "", "status gRPC health listen address")
	return cmd
}

func (o *calibrateOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if o.preset != "" {
		cfg.Search.Preset = o.preset
	}
	if o.generations > 0 {
		cfg.Search.Generations = o.generations
	}
	if o.population > 0 {
		cfg.Search.Population = o.population
	}
	if flags.Changed("seed") {
		seed := o.seed
		cfg.Search.Seed = &seed
	}
	if flags.Changed("workers") {
		cfg.Parallel.Enabled = o.workers != 1
		cfg.Parallel.Workers = o.workers
	}
	if o.outputDir != "" {
		cfg.Output.Dir = o.outputDir
	}
	if o.httpAddr != "" {
		cfg.Status.HTTPAddr = o.httpAddr
	}
	if o.grpcAddr != "" {
		cfg.Status.GRPCAddr = o.grpcAddr
	}
}

func runCalibration(ctx context.Context, cfg *config.Config, runID string, stdout io.Writer) error {
	p, err := project.Open(cfg, nil)
	if err != nil {
		return err
	}
	searcher, err := p.Searcher()
	if err != nil {
		return fmt.Errorf("invalid search configuration: %w", err)
	}

	ledger, err := store.Open(ctx, cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
	}()

	collector := metrics.NewCollector()
	driver, err := p.Driver(ledger, collector, runID)
	if err != nil {
		return err
	}

	var serve func(context.Context) error
	if cfg.Status.HTTPAddr != "" || cfg.Status.GRPCAddr != "" {
		srv, err := statusd.New(statusd.Config{
			HTTPAddr: cfg.Status.HTTPAddr,
			GRPCAddr: cfg.Status.GRPCAddr,
			Ledger:   ledger,
			Metrics:  collector,
		})
		if err != nil {
			return err
		}
		srv.SetServing(true)
		serve = srv.Serve
	}

	var out calibration.Outcome
	runErr := alongside(ctx, serve, func(ctx context.Context) error {
		var err error
		out, err = driver.Run(ctx, searcher)
		return err
	})

	printOutcome(stdout, out)
	return runErr
}

// alongside runs work while serve runs in the background. The status
// surface is optional: a serve failure is logged and never cancels work.
// serve is stopped once work returns.
func alongside(ctx context.Context, serve, work func(context.Context) error) error {
	if serve == nil {
		return work(ctx)
	}
	serveCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := serve(serveCtx); err != nil {
			logger.Warn("status server stopped", "error", err)
		}
	}()
	err := work(ctx)
	stop()
	<-done
	return err
}

func printOutcome(w io.Writer, out calibration.Outcome) {
	if out.RunID == "" {
		return
	}
	fmt.Fprintf(w, "run:          %s\n", out.RunID)
	fmt.Fprintf(w, "status:       %s\n", out.Status)
	fmt.Fprintf(w, "best fitness: %.6f\n", out.BestFitness)
	fmt.Fprintf(w, "evaluations:  %d\n", out.Evaluations)
	fmt.Fprintf(w, "generations:  %d\n", len(out.History))
	if out.ReportPath != "" {
		fmt.Fprintf(w, "report:       %s\n", out.ReportPath)
	}
	if out.ConfigPath != "" {
		fmt.Fprintf(w, "config:       %s\n", out.ConfigPath)
	}
	if out.Final != nil {
		for _, f := range out.Final.Files {
			fmt.Fprintf(w, "artifact:     %s\n", f)
		}
	}
}
