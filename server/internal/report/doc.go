// Package report assembles the rental delay statistics for one dataset into a
// Report: headline totals and rates, the gap distribution, the check-in method
// split, one threshold sweep per partition, and narrative insights.
//
// Build fails only when the table is empty or the thresholds are invalid.
// Problems confined to one partition (no problematic cases, no rows) become
// Warnings and leave the affected percentages unset.
//
// WriteText renders a Report as plain text for the report CLI.
package report
