package aggregate

import (
	"errors"
	"fmt"

	"github.com/delayboard/delayboard/pkg/rental"
)

// GapCeilingMinutes is the largest gap to a previous rental present in the
// source data. At this threshold every problematic case is counted.
const GapCeilingMinutes = 720

// DefaultThresholds is the standard minimum-delay sweep, in minutes.
var DefaultThresholds = []int{30, 60, 120, 240, 600, GapCeilingMinutes}

// Partition selects the rentals a sweep runs over.
type Partition string

const (
	PartitionAll     Partition = "all"
	PartitionMobile  Partition = "mobile"
	PartitionConnect Partition = "connect"
)

// Partitions is the set of partitions a report sweeps, in display order.
var Partitions = []Partition{PartitionAll, PartitionMobile, PartitionConnect}

// Filter returns the check-in method for p, or nil for PartitionAll.
func (p Partition) Filter() *rental.CheckinMethod {
	switch p {
	case PartitionMobile:
		m := rental.Mobile
		return &m
	case PartitionConnect:
		m := rental.Connect
		return &m
	default:
		return nil
	}
}

// ThresholdPoint is the sweep result for one threshold.
type ThresholdPoint struct {
	ThresholdMinutes int
	Count            int
	// PctOfProblematic is Count over the partition's problematic cases.
	// Nil when the partition has no problematic cases.
	PctOfProblematic *float64
	// PctOfTotal is Count over the partition's rows. Nil when the partition
	// has no rows.
	PctOfTotal *float64
}

// SweepResult is one partition's threshold sweep.
type SweepResult struct {
	Partition   Partition
	Rows        int
	Problematic int
	Points      []ThresholdPoint
}

// Sweep evaluates CountWithinThreshold for each threshold over partition p.
//
// Counts are always filled in. When a percentage cannot be computed the
// corresponding field is left nil and the returned error wraps
// rental.ErrDivisionByZero or rental.ErrEmptyInput; the result is still valid.
func Sweep(t rental.Table, thresholds []int, p Partition) (SweepResult, error) {
	filter := p.Filter()
	rows := t.Len()
	if filter != nil {
		rows = t.Filter(*filter).Len()
	}

	res := SweepResult{
		Partition:   p,
		Rows:        rows,
		Problematic: CountProblematic(t, filter),
		Points:      make([]ThresholdPoint, 0, len(thresholds)),
	}

	var probErr, totalErr error
	for _, th := range thresholds {
		pt := ThresholdPoint{
			ThresholdMinutes: th,
			Count:            CountWithinThreshold(t, th, filter),
		}
		if v, err := PercentageOfProblematic(pt.Count, res.Problematic); err != nil {
			probErr = err
		} else {
			pt.PctOfProblematic = &v
		}
		if v, err := PercentageOfTotal(pt.Count, rows); err != nil {
			totalErr = err
		} else {
			pt.PctOfTotal = &v
		}
		res.Points = append(res.Points, pt)
	}

	if err := errors.Join(probErr, totalErr); err != nil {
		return res, fmt.Errorf("sweep %s: %w", p, err)
	}
	return res, nil
}

// SweepAll runs Sweep for every partition in Partitions. Per-partition errors
// are returned keyed by partition; results are returned for all partitions.
func SweepAll(t rental.Table, thresholds []int) ([]SweepResult, map[Partition]error) {
	out := make([]SweepResult, 0, len(Partitions))
	var errs map[Partition]error
	for _, p := range Partitions {
		res, err := Sweep(t, thresholds, p)
		if err != nil {
			if errs == nil {
				errs = make(map[Partition]error)
			}
			errs[p] = err
		}
		out = append(out, res)
	}
	return out, errs
}

// ValidateThresholds checks that thresholds are positive and strictly increasing.
func ValidateThresholds(thresholds []int) error {
	if len(thresholds) == 0 {
		return errors.New("thresholds: at least one threshold is required")
	}
	for i, th := range thresholds {
		if th <= 0 {
			return fmt.Errorf("thresholds[%d] = %d must be positive", i, th)
		}
		if i > 0 && th <= thresholds[i-1] {
			return fmt.Errorf("thresholds[%d] = %d must be greater than %d", i, th, thresholds[i-1])
		}
	}
	return nil
}
