package loader

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/delayboard/delayboard/pkg/rental"
)

// Column names in the rental spreadsheet.
const (
	ColCheckoutDelay  = "delay_at_checkout_in_minutes"
	ColTimeDelta      = "time_delta_with_previous_rental_in_minutes"
	ColPreviousRental = "previous_ended_rental_id"
	ColCheckinType    = "checkin_type"

	// Optional columns, read when present.
	ColRentalID = "rental_id"
	ColCarID    = "car_id"
	ColState    = "state"
)

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{ColCheckoutDelay, ColTimeDelta, ColPreviousRental, ColCheckinType}

// Format is the on-disk spreadsheet format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// Options controls how a spreadsheet is read.
type Options struct {
	// Format is inferred from the file extension when empty.
	Format Format
	// Sheet names the worksheet to read (xlsx, xls). Empty means the first one.
	Sheet string
}

// Result is a parsed spreadsheet.
type Result struct {
	Table rental.Table
	// SkippedRows counts data rows dropped because their checkout delay is
	// null, which is how canceled rentals are exported.
	SkippedRows int
}

// DetectFormat infers the Format from path's extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("loader: cannot infer format of %q: want .xlsx|.xls|.csv", path)
	}
}

// LoadFile reads the spreadsheet at path.
func LoadFile(path string, opts Options) (Result, error) {
	if opts.Format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return Result{}, err
		}
		opts.Format = f
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("loader: open %q: %w", path, err)
	}
	defer f.Close()

	res, err := Read(f, opts)
	if err != nil {
		return Result{}, fmt.Errorf("loader: %s: %w", filepath.Base(path), err)
	}
	if res.SkippedRows > 0 {
		slog.Warn("loader: rows without checkout delay skipped",
			"file", filepath.Base(path),
			"skipped", res.SkippedRows,
			"rows", res.Table.Len(),
		)
	}
	return res, nil
}

// Read parses a spreadsheet from r. opts.Format is required.
func Read(r io.ReadSeeker, opts Options) (Result, error) {
	var (
		rows [][]string
		err  error
	)
	switch opts.Format {
	case FormatXLSX:
		rows, err = readXLSX(r, opts.Sheet)
	case FormatXLS:
		rows, err = readXLS(r, opts.Sheet)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return Result{}, fmt.Errorf("unsupported format %q", opts.Format)
	}
	if err != nil {
		return Result{}, err
	}
	return parseRows(rows)
}

// parseRows converts a header row plus data rows into a Table. Rows with a
// null checkout delay are counted in SkippedRows and left out.
func parseRows(rows [][]string) (Result, error) {
	if len(rows) == 0 {
		return Result{}, &rental.MissingColumnError{Column: RequiredColumns[0]}
	}

	idx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			return Result{}, &rental.MissingColumnError{Column: col}
		}
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var skipped int
	records := make([]rental.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := n + 2 // 1-based, after the header

		var rec rental.Record

		delay, ok, err := parseInt(cell(row, ColCheckoutDelay))
		if err != nil {
			return Result{}, fmt.Errorf("row %d: %s: %w", line, ColCheckoutDelay, err)
		}
		if !ok {
			skipped++
			continue
		}
		rec.CheckoutDelayMinutes = delay

		delta, ok, err := parseInt(cell(row, ColTimeDelta))
		if err != nil {
			return Result{}, fmt.Errorf("row %d: %s: %w", line, ColTimeDelta, err)
		}
		if ok {
			rec.TimeDeltaPreviousMinutes = &delta
		}

		prev, ok, err := parseInt64(cell(row, ColPreviousRental))
		if err != nil {
			return Result{}, fmt.Errorf("row %d: %s: %w", line, ColPreviousRental, err)
		}
		if ok {
			rec.PreviousRentalID = &prev
		}

		method, err := rental.ParseCheckinMethod(cell(row, ColCheckinType))
		if err != nil {
			return Result{}, fmt.Errorf("row %d: %s: %w", line, ColCheckinType, err)
		}
		rec.CheckinMethod = method

		if id, ok, err := parseInt64(cell(row, ColRentalID)); err == nil && ok {
			rec.RentalID = id
		}
		if id, ok, err := parseInt64(cell(row, ColCarID)); err == nil && ok {
			rec.CarID = id
		}
		if s := cell(row, ColState); !isNull(s) {
			rec.State = strings.ToLower(s)
		}

		records = append(records, rec)
	}
	return Result{Table: rental.NewTable(records), SkippedRows: skipped}, nil
}

// isNull reports whether s is one of the null tokens spreadsheets and pandas
// exports use.
func isNull(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "na", "null", "none", "<nil>":
		return true
	}
	return false
}

// maxExactInt bounds the integers a float64 cell holds exactly.
const maxExactInt = 1 << 53

// parseInt parses an integral cell. ok is false for null cells.
func parseInt(s string) (v int, ok bool, err error) {
	f, ok, err := parseNumber(s)
	if err != nil || !ok {
		return 0, ok, err
	}
	return int(f), true, nil
}

func parseInt64(s string) (v int64, ok bool, err error) {
	f, ok, err := parseNumber(s)
	if err != nil || !ok {
		return 0, ok, err
	}
	return int64(f), true, nil
}

func parseNumber(s string) (float64, bool, error) {
	if isNull(s) {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	if math.IsInf(f, 0) || f < -maxExactInt || f > maxExactInt {
		return 0, false, fmt.Errorf("out of range: %q", s)
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("not an integer: %q", s)
	}
	return f, true, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
