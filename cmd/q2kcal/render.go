package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/project"
	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/q2k"
	"github.com/spf13/cobra"
)

func newRenderCommand(root *rootOptions) *cobra.Command {
	var (
		vector []float64
		out    string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write the engine input document without running the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			p, err := project.Open(cfg, nil)
			if err != nil {
				return err
			}
			doc, err := p.Document(vector)
			if err != nil {
				return err
			}

			if out == "" {
				out = p.Name() + ".q2k"
				if cfg.Output.Dir != "" {
					out = filepath.Join(cfg.Output.Dir, out)
				}
			}
			abs, err := filepath.Abs(out)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", out, err)
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			doc.Header.FileDir = filepath.Dir(abs)
			if err := q2k.WriteFile(abs, doc); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), abs)
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&vector, "genes", nil, "comma separated gene values in parameter order")
	cmd.Flags().StringVarP(&out, "out", "o", "", "document path (default <output.dir>/<name>.q2k)")
	return cmd
}
