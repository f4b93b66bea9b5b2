// Package rental defines the rental event model shared by the loader, the
// aggregator and the report builder.
//
// A Table is loaded once from a spreadsheet and is never mutated afterwards;
// every aggregation takes the Table as an explicit argument.
//
// Error taxonomy:
//   - ErrEmptyInput        a whole-table rate was requested over zero rows
//   - ErrDivisionByZero    a percentage of problematic cases had no cases
//   - *MissingColumnError  a required column is absent from the input
package rental
