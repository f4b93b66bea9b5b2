package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/delayboard/delayboard/server/internal/aggregate"
	"github.com/delayboard/delayboard/server/internal/report"
)

// Condition is a parsed rule expression of the form "field op value".
//
// Supported fields:
//
//	rows                    number of rentals
//	late_rate_pct           % late for checkout
//	on_time_rate_pct        % on time or early
//	affected_share_pct      % preceded by another rental
//	problematic_cases       chained rentals after a late checkout
//	problematic_pct         problematic cases over all rentals
//	gap_median_min          median gap between chained rentals
//	gap_mean_min            mean gap between chained rentals
//	sweep_<partition>_<threshold>_pct
//	                        % of the partition's problematic cases solved
//	                        by a threshold, e.g. sweep_mobile_60_pct
type Condition struct {
	Field     string
	Op        string
	Threshold float64
}

// ParseCondition parses s into a Condition.
func ParseCondition(s string) (Condition, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Condition{}, fmt.Errorf("condition %q: want \"field op value\"", s)
	}
	c := Condition{Field: parts[0], Op: parts[1]}

	switch c.Op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return Condition{}, fmt.Errorf("condition %q: unknown operator %q", s, c.Op)
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: value: %w", s, err)
	}
	c.Threshold = v

	if !knownField(c.Field) {
		return Condition{}, fmt.Errorf("condition %q: unknown field %q", s, c.Field)
	}
	return c, nil
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.FormatFloat(c.Threshold, 'f', -1, 64))
}

// Eval tests c against r. It returns whether the condition fires and the
// field's value. A field with no value in r (no chained rentals, a sweep
// threshold that was not computed) never fires.
func (c Condition) Eval(r *report.Report) (bool, float64) {
	v, ok := fieldValue(c.Field, r)
	if !ok {
		return false, 0
	}
	return compareFloat(v, c.Op, c.Threshold), v
}

var scalarFields = map[string]func(*report.Report) (float64, bool){
	"rows":               func(r *report.Report) (float64, bool) { return float64(r.Totals.Rows), true },
	"late_rate_pct":      func(r *report.Report) (float64, bool) { return r.Rates.LatePct, true },
	"on_time_rate_pct":   func(r *report.Report) (float64, bool) { return r.Rates.OnTimePct, true },
	"affected_share_pct": func(r *report.Report) (float64, bool) { return r.Rates.AffectedPct, true },
	"problematic_cases":  func(r *report.Report) (float64, bool) { return float64(r.Totals.Problematic), true },
	"problematic_pct":    func(r *report.Report) (float64, bool) { return r.Rates.ProblematicPct, true },
	"gap_median_min": func(r *report.Report) (float64, bool) {
		if r.Gaps == nil {
			return 0, false
		}
		return r.Gaps.Median, true
	},
	"gap_mean_min": func(r *report.Report) (float64, bool) {
		if r.Gaps == nil {
			return 0, false
		}
		return r.Gaps.Mean, true
	},
}

func knownField(field string) bool {
	if _, ok := scalarFields[field]; ok {
		return true
	}
	_, _, ok := parseSweepField(field)
	return ok
}

// fieldValue maps a field name to its value in the report.
func fieldValue(field string, r *report.Report) (float64, bool) {
	if fn, ok := scalarFields[field]; ok {
		return fn(r)
	}
	p, th, ok := parseSweepField(field)
	if !ok {
		return 0, false
	}
	s := r.Sweep(p)
	if s == nil {
		return 0, false
	}
	for _, pt := range s.Points {
		if pt.ThresholdMinutes == th && pt.PctOfProblematic != nil {
			return *pt.PctOfProblematic, true
		}
	}
	return 0, false
}

// parseSweepField splits "sweep_<partition>_<threshold>_pct".
func parseSweepField(field string) (aggregate.Partition, int, bool) {
	rest, ok := strings.CutPrefix(field, "sweep_")
	if !ok {
		return "", 0, false
	}
	rest, ok = strings.CutSuffix(rest, "_pct")
	if !ok {
		return "", 0, false
	}
	part, num, ok := strings.Cut(rest, "_")
	if !ok {
		return "", 0, false
	}
	th, err := strconv.Atoi(num)
	if err != nil || th <= 0 {
		return "", 0, false
	}
	for _, p := range aggregate.Partitions {
		if string(p) == part {
			return p, th, true
		}
	}
	return "", 0, false
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
