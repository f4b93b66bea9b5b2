// Package store holds the latest report for every configured dataset. It is a
// thread-safe in-memory map keyed by dataset id; a failed load is kept as an
// entry carrying the error so readers can explain why a dataset has no report.
package store
