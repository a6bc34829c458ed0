package calibration

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/genes"
)

const rule = "================================================================================"
const thinRule = "--------------------------------------------------------------------------------"

// ReportData is everything WriteReport prints.
type ReportData struct {
	RunID        string
	FinalFitness float64
	Evaluations  int64
	Workers      int
	Search       []Setting
	Parameters   []genes.Value
	Reaches      int
	History      []GenerationRecord
}

// WriteReport writes the plain-text calibration report.
func WriteReport(w io.Writer, data ReportData) error {
	var b bytes.Buffer
	b.WriteString(rule + "\nCALIBRATION RESULTS\n" + rule + "\n\n")

	b.WriteString("GENERAL RESULTS:\n" + thinRule + "\n")
	if data.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", data.RunID)
	}
	fmt.Fprintf(&b, "Final fitness: %.6f\n", data.FinalFitness)
	fmt.Fprintf(&b, "Total evaluations: %d\n", data.Evaluations)
	fmt.Fprintf(&b, "Generations completed: %d\n", len(data.History))
	fmt.Fprintf(&b, "Workers: %d\n\n", data.Workers)

	b.WriteString("SEARCH CONFIGURATION:\n" + thinRule + "\n")
	for _, s := range data.Search {
		fmt.Fprintf(&b, "%s: %v\n", s.Name, s.Value)
	}
	b.WriteString("\n")

	b.WriteString("OPTIMAL PARAMETERS:\n" + thinRule + "\n")
	writeParameters(&b, data.Parameters)

	b.WriteString("\nGENERATION HISTORY:\n" + thinRule + "\n")
	fmt.Fprintf(&b, "%5s | %15s | %18s\n", "Gen", "Best gen", "Best global")
	b.WriteString(thinRule + "\n")
	for _, h := range data.History {
		fmt.Fprintf(&b, "%5d | %15.6f | %18.6f\n", h.Generation, h.BestThisGen, h.BestOverall)
	}

	_, err := w.Write(b.Bytes())
	return err
}

func writeParameters(b *bytes.Buffer, values []genes.Value) {
	for _, v := range values {
		if v.Parameter.Scope == genes.Global {
			fmt.Fprintf(b, "%-8s (global):  %.6f\n", v.Parameter.Name, v.Values[0])
			continue
		}
		fmt.Fprintf(b, "%-8s (per reach):\n", v.Parameter.Name)
		for i, x := range v.Values {
			fmt.Fprintf(b, "  Reach %d: %.6f\n", i+1, x)
		}
	}
}

// WriteConfiguration exports the search configuration and the calibrated
// parameter space.
func WriteConfiguration(w io.Writer, search []Setting, spec genes.ParameterSpec, reaches, workers int, timeout time.Duration) error {
	var b bytes.Buffer
	b.WriteString(rule + "\nCALIBRATION CONFIGURATION\n" + rule + "\n\n")

	b.WriteString("SEARCH:\n")
	for _, s := range search {
		fmt.Fprintf(&b, "  %s = %s\n", s.Name, formatSetting(s.Value))
	}

	b.WriteString("\nEXECUTION:\n")
	fmt.Fprintf(&b, "  workers = %d\n", workers)
	fmt.Fprintf(&b, "  timeout = %s\n", timeout)
	fmt.Fprintf(&b, "  reaches = %d\n", reaches)

	b.WriteString("\nPARAMETERS:\n")
	for _, p := range spec {
		fmt.Fprintf(&b, "  %-8s [%8.3f, %8.3f] %s\n", p.Name, p.Min, p.Max, p.Scope)
	}

	_, err := w.Write(b.Bytes())
	return err
}

func formatSetting(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []string:
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}
