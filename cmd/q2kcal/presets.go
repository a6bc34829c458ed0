package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/search"
	"github.com/spf13/cobra"
)

func newPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the search presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRESET\tGENERATIONS\tPOPULATION\tSTEP\tSTOP")
			for _, name := range search.Presets() {
				p, err := search.Preset(name)
				if err != nil {
					return err
				}
				def := ""
				if name == search.DefaultPreset {
					def = " (default)"
				}
				fmt.Fprintf(tw, "%s%s\t%d\t%d\t%g\t%v\n", name, def, p.Generations, p.Population, p.StepSize, p.StopCriteria)
			}
			return tw.Flush()
		},
	}
}
