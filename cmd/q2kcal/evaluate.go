package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/calibration"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/project"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/sandbox"
	"github.com/spf13/cobra"
)

func newEvaluateCommand(root *rootOptions) *cobra.Command {
	var (
		vector    []float64
		reportDir string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the engine once and score it against the observations",
		Long: "Run the engine once for a gene vector, or for the template's default " +
			"rate overrides when --genes is omitted, and print the fit statistics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			p, err := project.Open(cfg, nil)
			if err != nil {
				return err
			}
			if len(vector) > 0 && len(vector) != p.Codec.Len() {
				return fmt.Errorf("--genes has %d values, the project calibrates %d", len(vector), p.Codec.Len())
			}

			req := sandbox.Request{ID: 1, Genes: vector}
			if reportDir == "" && cfg.Output.Dir != "" {
				reportDir = filepath.Join(cfg.Output.Dir, calibration.ResultsDir)
			}
			if reportDir != "" {
				req.Report = &sandbox.ReportOptions{Dir: reportDir, Name: p.Name()}
			}

			res, err := p.Evaluator.Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("evaluation failed: %w", res.Err)
			}
			printEvaluation(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&vector, "genes", nil, "comma separated gene values in parameter order")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "directory for the result table, document and report")
	return cmd
}

func printEvaluation(w io.Writer, res sandbox.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tN\tKGE\tR\tALPHA\tBETA\tNSE\tRMSE\tPBIAS")
	for _, v := range res.Summary.Variables {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.2f\n",
			v.Name, v.N, v.KGE, v.R, v.Alpha, v.Beta, v.NSE, v.RMSE, v.PBIAS)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nmatched rows: %d\nfitness:      %.6f\nduration:     %s\n",
		res.Summary.Rows, res.Fitness, res.Duration.Round(time.Millisecond))
	for _, f := range res.Files {
		fmt.Fprintf(w, "artifact:     %s\n", f)
	}
}
