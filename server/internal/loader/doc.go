// Package loader reads a rental spreadsheet into a typed rental.Table.
//
// Supported formats: .xlsx (excelize), .xls (extrame/xls) and .csv (gota).
// Each format is first read into header + rows of strings, then parsed by one
// shared routine. Required columns are checked before any row is parsed; a
// missing one fails with *rental.MissingColumnError.
//
// Null tokens (empty, NaN, NA, null) are accepted for the nullable columns.
// Numeric cells exported from spreadsheets as floats ("12.0") are accepted.
package loader
