package drift

import (
	"fmt"
	"io"
	"strings"
)

const reportRule = "======================================================================"

// Render writes the human-readable audit report.
func Render(w io.Writer, checks []Check, summary Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, reportRule)
	fmt.Fprintln(w, "STATE DRIFT REPORT")
	fmt.Fprintln(w, reportRule)
	fmt.Fprintln(w)

	for i := range checks {
		c := &checks[i]
		fmt.Fprintf(w, "[%s] %s\n", marker(c.Outcome()), c.Name)
		fmt.Fprintf(w, "    declared: %s\n", renderSide(c.Declared.String(), c.DeclaredErr))
		fmt.Fprintf(w, "    actual:   %s\n", renderSide(c.Actual.String(), c.ActualErr))
		if c.Outcome() == Drifted {
			fmt.Fprintf(w, "    DRIFT: declared=%s actual=%s\n", c.Declared, c.Actual)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, reportRule)
	fmt.Fprintf(w, "Total checks: %d\n", summary.Total())
	fmt.Fprintf(w, "  Matching:   %d\n", summary.Matching)
	fmt.Fprintf(w, "  Drifts:     %d\n", summary.Drifts)
	fmt.Fprintf(w, "  Errors:     %d\n", summary.Errors)
	fmt.Fprintln(w, reportRule)
}

func marker(o Outcome) string {
	switch o {
	case Match:
		return " OK  "
	case Drifted:
		return "DRIFT"
	case Errored:
		return "ERROR"
	default:
		return strings.ToUpper(o.String())
	}
}

func renderSide(value string, err error) string {
	if err != nil {
		return "ERROR: " + err.Error()
	}
	return value
}
