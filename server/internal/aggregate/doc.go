// Package aggregate computes the rental delay statistics behind the report.
//
// Every function is pure: it reads an immutable rental.Table and returns a
// value. Rates are percentages in the range 0–100.
//
// aggregate.go holds the per-record predicates (IsChained, IsProblematic) and
// the whole-table rates. sweep.go evaluates CountWithinThreshold over a set of
// thresholds for one partition (all, mobile, connect). gaps.go derives
// descriptive statistics of the gap to the previous rental.
//
// A problematic case is a chained rental (gap to the previous rental > 0)
// whose checkout was late (delay > 0). Partitions always apply the check-in
// filter to both the gap and the delay mask.
package aggregate
