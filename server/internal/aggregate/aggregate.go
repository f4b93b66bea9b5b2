package aggregate

import (
	"github.com/delayboard/delayboard/pkg/rental"
)

// IsChained reports whether r follows a previous rental on the same car within
// the observed window. A missing or non-positive gap means "not chained".
func IsChained(r rental.Record) bool {
	return r.TimeDeltaPreviousMinutes != nil && *r.TimeDeltaPreviousMinutes > 0
}

// IsProblematic reports whether r is chained and its checkout ran late.
func IsProblematic(r rental.Record) bool {
	return IsChained(r) && r.Late()
}

// OnTimeRate returns the percentage of rentals checked out on time or early.
func OnTimeRate(t rental.Table) (float64, error) {
	if t.Len() == 0 {
		return 0, rental.ErrEmptyInput
	}
	var n int
	t.Each(func(r rental.Record) {
		if !r.Late() {
			n++
		}
	})
	return percent(n, t.Len()), nil
}

// LateRate returns the percentage of rentals checked out late.
func LateRate(t rental.Table) (float64, error) {
	if t.Len() == 0 {
		return 0, rental.ErrEmptyInput
	}
	return percent(CountLate(t), t.Len()), nil
}

// CountLate returns the number of late checkouts.
func CountLate(t rental.Table) int {
	var n int
	t.Each(func(r rental.Record) {
		if r.Late() {
			n++
		}
	})
	return n
}

// CountChained returns the number of chained rentals.
func CountChained(t rental.Table) int {
	var n int
	t.Each(func(r rental.Record) {
		if IsChained(r) {
			n++
		}
	})
	return n
}

// CountProblematic returns the number of problematic cases, optionally
// restricted to one check-in method.
func CountProblematic(t rental.Table, filter *rental.CheckinMethod) int {
	var n int
	t.Each(func(r rental.Record) {
		if matches(r, filter) && IsProblematic(r) {
			n++
		}
	})
	return n
}

// CountWithinThreshold counts problematic cases whose gap to the previous
// rental is at most thresholdMinutes (inclusive). When filter is non-nil only
// rentals with that check-in method are counted.
func CountWithinThreshold(t rental.Table, thresholdMinutes int, filter *rental.CheckinMethod) int {
	var n int
	t.Each(func(r rental.Record) {
		if !matches(r, filter) || !IsProblematic(r) {
			return
		}
		if *r.TimeDeltaPreviousMinutes <= thresholdMinutes {
			n++
		}
	})
	return n
}

// PercentageOfProblematic returns count as a percentage of totalProblematic.
func PercentageOfProblematic(count, totalProblematic int) (float64, error) {
	if totalProblematic == 0 {
		return 0, rental.ErrDivisionByZero
	}
	return percent(count, totalProblematic), nil
}

// PercentageOfTotal returns count as a percentage of totalRows.
func PercentageOfTotal(count, totalRows int) (float64, error) {
	if totalRows == 0 {
		return 0, rental.ErrEmptyInput
	}
	return percent(count, totalRows), nil
}

// CountAffected returns the number of rentals chained to a previous rental id.
func CountAffected(t rental.Table) int {
	var n int
	t.Each(func(r rental.Record) {
		if r.PreviousRentalID != nil {
			n++
		}
	})
	return n
}

// RevenueAffectedShare returns the percentage of rentals that have a previous
// rental id. These bookings would be exposed to a minimum delay between
// rentals on the same car.
func RevenueAffectedShare(t rental.Table) (float64, error) {
	if t.Len() == 0 {
		return 0, rental.ErrEmptyInput
	}
	return percent(CountAffected(t), t.Len()), nil
}

// MethodShare is the row count and late rate for one check-in method.
type MethodShare struct {
	Method   rental.CheckinMethod
	Rows     int
	SharePct float64
	// LateRatePct is nil when the method has no rows.
	LateRatePct *float64
}

// SplitByMethod returns one MethodShare per check-in method in rental.Methods order.
func SplitByMethod(t rental.Table) ([]MethodShare, error) {
	if t.Len() == 0 {
		return nil, rental.ErrEmptyInput
	}
	out := make([]MethodShare, 0, len(rental.Methods))
	for _, m := range rental.Methods {
		part := t.Filter(m)
		ms := MethodShare{
			Method:   m,
			Rows:     part.Len(),
			SharePct: percent(part.Len(), t.Len()),
		}
		if late, err := LateRate(part); err == nil {
			ms.LateRatePct = &late
		}
		out = append(out, ms)
	}
	return out, nil
}

func matches(r rental.Record, filter *rental.CheckinMethod) bool {
	return filter == nil || r.CheckinMethod == *filter
}

func percent(n, total int) float64 {
	return 100 * float64(n) / float64(total)
}
