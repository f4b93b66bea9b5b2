// Command report prints the rental delay report for one spreadsheet.
//
//	report -file get_around_delay_analysis.xlsx -sheet rentals_data
//	report -file delays.csv -thresholds 15,30,60 -json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/delayboard/delayboard/server/internal/aggregate"
	"github.com/delayboard/delayboard/server/internal/api"
	"github.com/delayboard/delayboard/server/internal/loader"
	"github.com/delayboard/delayboard/server/internal/report"
)

func main() {
	file := flag.String("file", "", "spreadsheet to analyse (.xlsx, .xls or .csv)")
	sheet := flag.String("sheet", "", "worksheet name (default: first sheet)")
	format := flag.String("format", "", "xlsx|xls|csv (default: from extension)")
	thresholds := flag.String("thresholds", "", "comma-separated sweep thresholds in minutes (default 30,60,120,240,600,720)")
	asJSON := flag.Bool("json", false, "print the report as JSON instead of text")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *file == "" {
		fmt.Fprintln(os.Stderr, "report: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	ths, err := parseThresholds(*thresholds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(2)
	}

	start := time.Now()
	res, err := loader.LoadFile(*file, loader.Options{Format: loader.Format(*format), Sheet: *sheet})
	if err != nil {
		slog.Error("load failed", "file", *file, "err", err)
		os.Exit(1)
	}
	rep, err := report.Build(strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file)),
		res.Table, ths, report.WithSkippedRows(res.SkippedRows))
	if err != nil {
		slog.Error("report failed", "file", *file, "err", err)
		os.Exit(1)
	}
	slog.Debug("report built", "rows", res.Table.Len(), "skipped", res.SkippedRows, "took", time.Since(start))

	if err := writeReport(os.Stdout, rep, *asJSON); err != nil {
		slog.Error("write report", "err", err)
		os.Exit(1)
	}
}

// writeReport prints rep as text, or as the same JSON document the server
// returns for GET /api/v1/datasets/{id}.
func writeReport(w io.Writer, rep *report.Report, asJSON bool) error {
	if !asJSON {
		return report.WriteText(w, rep)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewReportResponse(rep, rep.GeneratedAt))
}

// parseThresholds parses "30,60,120". Empty selects the defaults.
func parseThresholds(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("-thresholds: %q is not a whole number of minutes", p)
		}
		out = append(out, v)
	}
	if err := aggregate.ValidateThresholds(out); err != nil {
		return nil, fmt.Errorf("-thresholds: %w", err)
	}
	return out, nil
}
