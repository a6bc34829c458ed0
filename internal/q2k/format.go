// Package q2k renders configuration documents in the engine's fixed-field
// input protocol.
package q2k

import (
	"math"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/document"
)

const missing = "-99999"

// FormatNumber renders v with 15 significant digits, an uppercase exponent
// marker and no leading zero before the decimal point. NaN and infinities
// render as the missing sentinel.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return missing
	}
	s := strconv.FormatFloat(v, 'G', 15, 64)
	switch {
	case strings.HasPrefix(s, "0."):
		s = s[1:]
	case strings.HasPrefix(s, "-0."):
		s = "-" + s[2:]
	}
	return s
}

// formatOpt renders an unset value as the missing sentinel.
func formatOpt(o document.OptFloat) string {
	v, ok := o.Get()
	if !ok {
		return missing
	}
	return FormatNumber(v)
}

// formatBlank renders an unset value as an empty cell. Only headwater
// hourly series accept blanks.
func formatBlank(o document.OptFloat) string {
	v, ok := o.Get()
	if !ok {
		return ""
	}
	return FormatNumber(v)
}

func quote(s string) string {
	return `"` + s + `"`
}

func formatBool(b bool) string {
	if b {
		return ".TRUE."
	}
	return ".FALSE."
}
