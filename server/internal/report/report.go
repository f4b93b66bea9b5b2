package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/delayboard/delayboard/pkg/rental"
	"github.com/delayboard/delayboard/server/internal/aggregate"
)

// Totals are the headline counts of a dataset.
type Totals struct {
	Rows        int
	Late        int
	Chained     int
	Problematic int
	// Affected is the number of rentals with a previous rental id.
	Affected int
	// Skipped counts input rows left out of every figure because their
	// checkout delay is null.
	Skipped int
}

// Rates are the headline percentages of a dataset.
type Rates struct {
	OnTimePct      float64
	LatePct        float64
	AffectedPct    float64
	ProblematicPct float64 // problematic cases over all rentals
}

// Report is the full set of statistics for one dataset.
type Report struct {
	DatasetID   string
	GeneratedAt time.Time
	Thresholds  []int

	Totals Totals
	Rates  Rates

	// Gaps is nil when no rental is chained.
	Gaps    *aggregate.GapSummary
	Methods []aggregate.MethodShare
	Sweeps  []aggregate.SweepResult

	Warnings []string
	Insights []Insight
}

// Sweep returns the sweep for partition p, or nil.
func (r *Report) Sweep(p aggregate.Partition) *aggregate.SweepResult {
	for i := range r.Sweeps {
		if r.Sweeps[i].Partition == p {
			return &r.Sweeps[i]
		}
	}
	return nil
}

// Option adjusts a Report during Build.
type Option func(*Report)

// WithSkippedRows records n input rows dropped before aggregation.
func WithSkippedRows(n int) Option {
	return func(r *Report) { r.Totals.Skipped = n }
}

// Build computes the Report for table. A nil thresholds slice selects
// aggregate.DefaultThresholds.
func Build(datasetID string, table rental.Table, thresholds []int, opts ...Option) (*Report, error) {
	if thresholds == nil {
		thresholds = aggregate.DefaultThresholds
	}
	if err := aggregate.ValidateThresholds(thresholds); err != nil {
		return nil, fmt.Errorf("report %s: %w", datasetID, err)
	}

	r := &Report{
		DatasetID:   datasetID,
		GeneratedAt: time.Now().UTC(),
		Thresholds:  append([]int(nil), thresholds...),
		Totals: Totals{
			Rows:        table.Len(),
			Late:        aggregate.CountLate(table),
			Chained:     aggregate.CountChained(table),
			Problematic: aggregate.CountProblematic(table, nil),
			Affected:    aggregate.CountAffected(table),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if n := r.Totals.Skipped; n > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"%d rows without a checkout delay (canceled rentals) left out of every figure", n))
	}

	var err error
	if r.Rates.OnTimePct, err = aggregate.OnTimeRate(table); err != nil {
		return nil, fmt.Errorf("report %s: %w", datasetID, err)
	}
	if r.Rates.LatePct, err = aggregate.LateRate(table); err != nil {
		return nil, fmt.Errorf("report %s: %w", datasetID, err)
	}
	if r.Rates.AffectedPct, err = aggregate.RevenueAffectedShare(table); err != nil {
		return nil, fmt.Errorf("report %s: %w", datasetID, err)
	}
	if r.Rates.ProblematicPct, err = aggregate.PercentageOfTotal(r.Totals.Problematic, r.Totals.Rows); err != nil {
		return nil, fmt.Errorf("report %s: %w", datasetID, err)
	}
	if r.Methods, err = aggregate.SplitByMethod(table); err != nil {
		return nil, fmt.Errorf("report %s: %w", datasetID, err)
	}

	if g, err := aggregate.SummarizeGaps(table); err == nil {
		r.Gaps = &g
	} else if errors.Is(err, rental.ErrEmptyInput) {
		r.Warnings = append(r.Warnings, "gap summary unavailable: no rental follows a previous rental")
	}

	sweeps, errs := aggregate.SweepAll(table, thresholds)
	r.Sweeps = sweeps
	for _, p := range aggregate.Partitions {
		if e, ok := errs[p]; ok {
			r.Warnings = append(r.Warnings, partitionWarning(p, e))
		}
	}

	r.Insights = computeInsights(r)
	return r, nil
}

// partitionWarning explains why a partition's percentages are missing.
func partitionWarning(p aggregate.Partition, err error) string {
	switch {
	case errors.Is(err, rental.ErrEmptyInput):
		return fmt.Sprintf("%s: no rentals in this partition; percentages unavailable", p)
	case errors.Is(err, rental.ErrDivisionByZero):
		return fmt.Sprintf("%s: no problematic cases; share of problematic cases unavailable", p)
	default:
		return fmt.Sprintf("%s: %v", p, err)
	}
}
