package aggregate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/delayboard/delayboard/pkg/rental"
)

// GapSummary describes the distribution of gaps to the previous rental over
// chained rentals, in minutes.
type GapSummary struct {
	Count  int
	Mean   float64
	Std    float64 // sample standard deviation; 0 when Count < 2
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// SummarizeGaps returns descriptive statistics of the positive gaps in t.
// It fails with rental.ErrEmptyInput when no rental is chained.
func SummarizeGaps(t rental.Table) (GapSummary, error) {
	gaps := make([]float64, 0, t.Len())
	t.Each(func(r rental.Record) {
		if IsChained(r) {
			gaps = append(gaps, float64(*r.TimeDeltaPreviousMinutes))
		}
	})
	if len(gaps) == 0 {
		return GapSummary{}, rental.ErrEmptyInput
	}
	sort.Float64s(gaps)

	mean, std := stat.MeanStdDev(gaps, nil)
	if len(gaps) < 2 {
		std = 0
	}
	return GapSummary{
		Count:  len(gaps),
		Mean:   mean,
		Std:    std,
		Min:    gaps[0],
		Q1:     quantile(0.25, gaps),
		Median: quantile(0.5, gaps),
		Q3:     quantile(0.75, gaps),
		Max:    gaps[len(gaps)-1],
	}, nil
}

// quantile returns the p-quantile of the sorted slice x, interpolating
// linearly between the two closest ranks at h = (n-1)p.
func quantile(p float64, x []float64) float64 {
	h := float64(len(x)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(x) {
		return x[len(x)-1]
	}
	return x[i] + (h-lo)*(x[i+1]-x[i])
}
