package report

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText renders r as plain text.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Dataset:\t%s\n", r.DatasetID)
	fmt.Fprintf(tw, "Rentals:\t%d\n", r.Totals.Rows)
	if r.Totals.Skipped > 0 {
		fmt.Fprintf(tw, "Skipped (no checkout delay):\t%d\n", r.Totals.Skipped)
	}
	fmt.Fprintf(tw, "On time or early:\t%.2f%%\n", r.Rates.OnTimePct)
	fmt.Fprintf(tw, "Late for checkout:\t%.2f%%\t(%d)\n", r.Rates.LatePct, r.Totals.Late)
	fmt.Fprintf(tw, "Rentals affected:\t%.2f%%\t(%d)\n", r.Rates.AffectedPct, r.Totals.Affected)
	fmt.Fprintf(tw, "Problematic cases:\t%.2f%%\t(%d)\n", r.Rates.ProblematicPct, r.Totals.Problematic)

	if g := r.Gaps; g != nil {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Gap to previous rental (minutes)")
		fmt.Fprintln(tw, "count\tmean\tstd\tmin\t25%\t50%\t75%\tmax")
		fmt.Fprintf(tw, "%d\t%.1f\t%.1f\t%.0f\t%.0f\t%.0f\t%.0f\t%.0f\n",
			g.Count, g.Mean, g.Std, g.Min, g.Q1, g.Median, g.Q3, g.Max)
	}

	if len(r.Methods) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Check-in method\trentals\tshare\tlate")
		for _, m := range r.Methods {
			fmt.Fprintf(tw, "%s\t%d\t%.2f%%\t%s\n", m.Method, m.Rows, m.SharePct, pct(m.LateRatePct))
		}
	}

	for _, s := range r.Sweeps {
		fmt.Fprintln(tw)
		fmt.Fprintf(tw, "Threshold sweep: %s (%d rentals, %d problematic)\n", s.Partition, s.Rows, s.Problematic)
		fmt.Fprintln(tw, "threshold\tcases\tof problematic\tof rentals")
		for _, pt := range s.Points {
			fmt.Fprintf(tw, "%d min\t%d\t%s\t%s\n",
				pt.ThresholdMinutes, pt.Count, pct(pt.PctOfProblematic), pct(pt.PctOfTotal))
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Warnings")
		for _, warn := range r.Warnings {
			fmt.Fprintf(tw, "- %s\n", warn)
		}
	}

	if len(r.Insights) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Insights")
		for _, in := range r.Insights {
			fmt.Fprintf(tw, "[%s] %s\n", in.Level, in.Title)
		}
	}

	return tw.Flush()
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v)
}
