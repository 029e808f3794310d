package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Write renders the report in the named format
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", FormatText:
		return r.WriteText(w)
	case FormatJSON:
		return r.WriteJSON(w)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText writes a per-case table followed by the summary
func (r *Report) WriteText(w io.Writer) error {
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset: %s\n\n", r.Dataset)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tK\tP(base)\tP(exp)\tR(base)\tR(exp)\tΔR\tEXPANSIONS")
	for _, c := range r.Results {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%+.3f\t%s\n",
			c.Name, c.K,
			c.Baseline.Precision, c.Expanded.Precision,
			c.Baseline.Recall, c.Expanded.Recall,
			c.RecallDelta,
			strings.Join(c.ExpandedQueries, "; "),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := r.Summary
	fmt.Fprintf(w, "\nCases: %d\n", s.Cases)
	fmt.Fprintf(w, "Mean precision: baseline %.3f, expanded %.3f (%+.3f)\n",
		s.BaselinePrecision, s.ExpandedPrecision, s.PrecisionDelta)
	fmt.Fprintf(w, "Mean recall:    baseline %.3f, expanded %.3f (%+.3f)\n",
		s.BaselineRecall, s.ExpandedRecall, s.RecallDelta)
	_, err := fmt.Fprintf(w, "Recall improved in %d case(s), regressed in %d\n",
		s.RecallImprovedCases, s.RecallRegressedCases)
	return err
}
