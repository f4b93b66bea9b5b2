package report

import (
	"fmt"

	"github.com/delayboard/delayboard/server/internal/aggregate"
)

// Insight levels, in display order.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
	LevelOK       = "ok"
)

// resolveTarget is the share of a partition's problematic cases a threshold
// must cover to be recommended.
const resolveTarget = 50.0

// Insight is one narrative finding about a dataset, shown next to the charts.
type Insight struct {
	// Key is a stable machine-readable identifier.
	Key string
	// Level is "ok" | "info" | "warning" | "critical".
	Level string
	// Title is a short label.
	Title string
	// Detail is the full explanation.
	Detail string
	// Value is the headline number behind the insight, if any.
	Value *float64
}

// computeInsights derives the narrative that accompanies the report.
func computeInsights(r *Report) []Insight {
	var out []Insight

	// ── On time vs late ──────────────────────────────────────────────────────
	late := r.Rates.LatePct
	level := LevelInfo
	if late > r.Rates.OnTimePct {
		level = LevelWarning
	}
	out = append(out, Insight{
		Key:   "late_checkouts",
		Level: level,
		Title: fmt.Sprintf("%.1f%% late checkouts", late),
		Detail: fmt.Sprintf(
			"%.2f%% of drivers returned the car on time or early and %.2f%% were late "+
				"for checkout (%d of %d rentals). A late checkout delays the next "+
				"driver's check-in when the car is booked again shortly after.",
			r.Rates.OnTimePct, late, r.Totals.Late, r.Totals.Rows),
		Value: &late,
	})

	// ── Waiting time between chained rentals ─────────────────────────────────
	if g := r.Gaps; g != nil {
		median := g.Median
		out = append(out, Insight{
			Key:   "chained_gaps",
			Level: LevelInfo,
			Title: fmt.Sprintf("Median gap %.0f min", median),
			Detail: fmt.Sprintf(
				"For the %d rentals that follow a previous rental on the same car, the gap "+
					"was at least %.0f minutes and at most %.0f minutes. Half of them had a gap "+
					"of up to %.0f minutes and 75%% up to %.0f minutes. The mean gap is %.0f "+
					"minutes with a standard deviation of %.0f minutes. No gap above %d minutes "+
					"is recorded in the data.",
				g.Count, g.Min, g.Max, g.Median, g.Q3, g.Mean, g.Std, aggregate.GapCeilingMinutes),
			Value: &median,
		})
	}

	// ── Share of rentals exposed to a minimum delay ──────────────────────────
	affected := r.Rates.AffectedPct
	out = append(out, Insight{
		Key:   "affected_share",
		Level: LevelInfo,
		Title: fmt.Sprintf("%.1f%% of rentals affected", affected),
		Detail: fmt.Sprintf(
			"%d of %d rentals were preceded by another rental on the same car within 12 hours. "+
				"A minimum delay between rentals would apply to %.2f%% of bookings.",
			r.Totals.Affected, r.Totals.Rows, affected),
		Value: &affected,
	})

	// ── Problematic cases ────────────────────────────────────────────────────
	prob := r.Rates.ProblematicPct
	level = LevelOK
	if r.Totals.Problematic > 0 {
		level = LevelWarning
	}
	out = append(out, Insight{
		Key:   "problematic_cases",
		Level: level,
		Title: fmt.Sprintf("%d problematic cases", r.Totals.Problematic),
		Detail: fmt.Sprintf(
			"%d rentals (%.2f%% of all rentals) followed a previous rental on the same car "+
				"and that previous driver was late for checkout. These are the cases a minimum "+
				"delay would solve.",
			r.Totals.Problematic, prob),
		Value: &prob,
	})

	// ── Recommended threshold per partition ──────────────────────────────────
	for _, s := range r.Sweeps {
		if in, ok := recommendThreshold(s); ok {
			out = append(out, in)
		}
	}

	return out
}

// recommendThreshold picks the smallest threshold that resolves at least
// resolveTarget percent of the partition's problematic cases.
func recommendThreshold(s aggregate.SweepResult) (Insight, bool) {
	for _, pt := range s.Points {
		if pt.PctOfProblematic == nil || *pt.PctOfProblematic < resolveTarget {
			continue
		}
		th := float64(pt.ThresholdMinutes)
		var ofTotal float64
		if pt.PctOfTotal != nil {
			ofTotal = *pt.PctOfTotal
		}
		return Insight{
			Key:   "recommended_threshold_" + string(s.Partition),
			Level: LevelInfo,
			Title: fmt.Sprintf("%s: %d min threshold", s.Partition, pt.ThresholdMinutes),
			Detail: fmt.Sprintf(
				"A minimum delay of %d minutes would solve %d of the %d problematic %s cases "+
					"(%.2f%%), which is %.2f%% of the %d rentals in this scope.",
				pt.ThresholdMinutes, pt.Count, s.Problematic, s.Partition,
				*pt.PctOfProblematic, ofTotal, s.Rows),
			Value: &th,
		}, true
	}
	return Insight{}, false
}
