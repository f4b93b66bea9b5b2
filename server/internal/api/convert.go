package api

import (
	"time"

	"github.com/delayboard/delayboard/server/internal/aggregate"
	"github.com/delayboard/delayboard/server/internal/report"
	"github.com/delayboard/delayboard/server/internal/store"
)

// toDatasetSummary maps a store.Entry to its list representation.
func toDatasetSummary(e *store.Entry) DatasetSummary {
	s := DatasetSummary{
		ID:       e.DatasetID,
		LoadedAt: e.LoadedAt.UTC().Format(time.RFC3339),
	}
	if !e.OK() {
		s.Status = "failed"
		if e.Err != nil {
			s.Error = e.Err.Error()
		}
		return s
	}
	r := e.Report
	s.Status = "ready"
	s.Rows = r.Totals.Rows
	s.LateRatePct = r.Rates.LatePct
	s.ProblematicCases = r.Totals.Problematic
	s.WarningCount = len(r.Warnings)
	return s
}

// toReportResponse maps a successful store.Entry to the full report payload.
func toReportResponse(e *store.Entry) ReportResponse {
	return NewReportResponse(e.Report, e.LoadedAt)
}

// NewReportResponse maps r to the JSON payload served for a dataset.
func NewReportResponse(r *report.Report, loadedAt time.Time) ReportResponse {
	resp := ReportResponse{
		DatasetID:   r.DatasetID,
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
		LoadedAt:    loadedAt.UTC().Format(time.RFC3339),
		Thresholds:  append([]int{}, r.Thresholds...),
		Totals: TotalsResponse{
			Rows:        r.Totals.Rows,
			Late:        r.Totals.Late,
			Chained:     r.Totals.Chained,
			Problematic: r.Totals.Problematic,
			Affected:    r.Totals.Affected,
			Skipped:     r.Totals.Skipped,
		},
		Rates: RatesResponse{
			OnTimePct:      r.Rates.OnTimePct,
			LatePct:        r.Rates.LatePct,
			AffectedPct:    r.Rates.AffectedPct,
			ProblematicPct: r.Rates.ProblematicPct,
		},
		Methods:  make([]MethodResponse, 0, len(r.Methods)),
		Sweeps:   make([]SweepResponse, 0, len(r.Sweeps)),
		Warnings: append([]string{}, r.Warnings...),
		Insights: make([]InsightResponse, 0, len(r.Insights)),
	}
	if g := r.Gaps; g != nil {
		resp.Gaps = &GapSummaryResponse{
			Count: g.Count, Mean: g.Mean, Std: g.Std,
			Min: g.Min, Q1: g.Q1, Median: g.Median, Q3: g.Q3, Max: g.Max,
		}
	}
	for _, m := range r.Methods {
		resp.Methods = append(resp.Methods, MethodResponse{
			Method:      string(m.Method),
			Rows:        m.Rows,
			SharePct:    m.SharePct,
			LateRatePct: m.LateRatePct,
		})
	}
	for _, s := range r.Sweeps {
		resp.Sweeps = append(resp.Sweeps, toSweepResponse(s))
	}
	for _, in := range r.Insights {
		resp.Insights = append(resp.Insights, InsightResponse{
			Key:    in.Key,
			Level:  in.Level,
			Title:  in.Title,
			Detail: in.Detail,
			Value:  in.Value,
		})
	}
	return resp
}

func toSweepResponse(s aggregate.SweepResult) SweepResponse {
	out := SweepResponse{
		Partition:   string(s.Partition),
		Rows:        s.Rows,
		Problematic: s.Problematic,
		Points:      make([]PointResponse, 0, len(s.Points)),
	}
	for _, pt := range s.Points {
		out.Points = append(out.Points, PointResponse{
			ThresholdMinutes: pt.ThresholdMinutes,
			Count:            pt.Count,
			PctOfProblematic: pt.PctOfProblematic,
			PctOfTotal:       pt.PctOfTotal,
		})
	}
	return out
}
