package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/delayboard/delayboard/pkg/rental"
	"github.com/delayboard/delayboard/server/internal/alerts"
	"github.com/delayboard/delayboard/server/internal/api"
	"github.com/delayboard/delayboard/server/internal/report"
	"github.com/delayboard/delayboard/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

func gap(n int) *int { return &n }

func id(n int64) *int64 { return &n }

// buildReport builds a report over four rentals: one problematic mobile
// rental and no problematic connect rental.
func buildReport(t *testing.T, datasetID string) *report.Report {
	t.Helper()
	table := rental.NewTable([]rental.Record{
		{CheckoutDelayMinutes: 10, TimeDeltaPreviousMinutes: gap(5), PreviousRentalID: id(1), CheckinMethod: rental.Mobile},
		{CheckoutDelayMinutes: -5, TimeDeltaPreviousMinutes: gap(40), PreviousRentalID: id(2), CheckinMethod: rental.Connect},
		{CheckoutDelayMinutes: 20, CheckinMethod: rental.Mobile},
		{CheckoutDelayMinutes: 0, TimeDeltaPreviousMinutes: gap(700), PreviousRentalID: id(3), CheckinMethod: rental.Connect},
	})
	r, err := report.Build(datasetID, table, []int{30, 60, 720})
	if err != nil {
		t.Fatalf("report.Build: %v", err)
	}
	return r
}

func newStore(t *testing.T, ids ...string) *store.Store {
	t.Helper()
	st := store.New()
	for _, id := range ids {
		st.Put(buildReport(t, id))
	}
	return st
}

type fakeAlerts []*alerts.Alert

func (f fakeAlerts) Active() []*alerts.Alert { return f }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	h := api.New(store.New(), nil)
	rr := get(t, h, "/api/v1/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "unknown" || resp.DatasetCount != 0 {
		t.Errorf("health: got %+v, want unknown with 0 datasets", resp)
	}
}

func TestHealth_Degraded(t *testing.T) {
	st := newStore(t, "rentals")
	st.PutError("archive", errors.New("open archive.xlsx: no such file"))
	h := api.New(st, fakeAlerts{{RuleName: "late", State: alerts.StateFiring}})

	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)
	if resp.Status != "degraded" {
		t.Errorf("status: got %q, want degraded", resp.Status)
	}
	if resp.ReadyCount != 1 || resp.FailedCount != 1 || resp.AlertCount != 1 {
		t.Errorf("counts: got %+v", resp)
	}
}

func TestHealth_OK(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)
	if resp.Status != "ok" {
		t.Errorf("status: got %q, want ok", resp.Status)
	}
}

// --- /api/v1/datasets -------------------------------------------------------

func TestListDatasets(t *testing.T) {
	st := newStore(t, "rentals", "archive")
	st.PutError("broken", errors.New("missing column"))
	h := api.New(st, nil)

	rr := get(t, h, "/api/v1/datasets")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp []api.DatasetSummary
	decode(t, rr, &resp)
	if len(resp) != 3 {
		t.Fatalf("datasets: got %d, want 3", len(resp))
	}
	// sorted by id
	if resp[0].ID != "archive" || resp[1].ID != "broken" || resp[2].ID != "rentals" {
		t.Errorf("order: got %q %q %q", resp[0].ID, resp[1].ID, resp[2].ID)
	}
	if resp[1].Status != "failed" || resp[1].Error == "" {
		t.Errorf("broken: got %+v", resp[1])
	}
	if r := resp[2]; r.Status != "ready" || r.Rows != 4 || r.ProblematicCases != 1 || r.LateRatePct != 50 {
		t.Errorf("rentals: got %+v", r)
	}
}

func TestListDatasets_EmptyIsArray(t *testing.T) {
	h := api.New(store.New(), nil)
	rr := get(t, h, "/api/v1/datasets")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("body: got %s, want []", body)
	}
}

func TestGetDataset_Found(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	rr := get(t, h, "/api/v1/datasets/rentals")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.ReportResponse
	decode(t, rr, &resp)

	if resp.DatasetID != "rentals" {
		t.Errorf("dataset_id: got %q", resp.DatasetID)
	}
	if resp.Totals.Rows != 4 || resp.Totals.Problematic != 1 {
		t.Errorf("totals: got %+v", resp.Totals)
	}
	if resp.Rates.OnTimePct != 50 || resp.Rates.AffectedPct != 75 {
		t.Errorf("rates: got %+v", resp.Rates)
	}
	if resp.Gaps == nil || resp.Gaps.Count != 3 {
		t.Errorf("gaps: got %+v", resp.Gaps)
	}
	if len(resp.Sweeps) != 3 || len(resp.Methods) != 2 || len(resp.Insights) == 0 {
		t.Errorf("series: sweeps=%d methods=%d insights=%d", len(resp.Sweeps), len(resp.Methods), len(resp.Insights))
	}
	if len(resp.Warnings) != 1 {
		t.Errorf("warnings: got %v, want connect warning", resp.Warnings)
	}
}

func TestGetDataset_NotFound(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	for _, path := range []string{
		"/api/v1/datasets/nope",
		"/api/v1/datasets/nope/sweeps",
		"/api/v1/datasets/rentals/unknown-view",
	} {
		if rr := get(t, h, path); rr.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, rr.Code)
		}
	}
}

func TestGetDataset_FailedLoad(t *testing.T) {
	st := store.New()
	st.PutError("broken", &rental.MissingColumnError{Column: "checkin_type"})
	h := api.New(st, nil)

	rr := get(t, h, "/api/v1/datasets/broken")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want 422", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if !strings.Contains(resp["error"], "checkin_type") {
		t.Errorf("error: got %q", resp["error"])
	}
}

func TestSweeps(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)

	var all []api.SweepResponse
	decode(t, get(t, h, "/api/v1/datasets/rentals/sweeps"), &all)
	if len(all) != 3 {
		t.Fatalf("sweeps: got %d, want 3", len(all))
	}

	var connect []api.SweepResponse
	decode(t, get(t, h, "/api/v1/datasets/rentals/sweeps?partition=connect"), &connect)
	if len(connect) != 1 || connect[0].Partition != "connect" {
		t.Fatalf("connect: got %+v", connect)
	}
	for _, pt := range connect[0].Points {
		if pt.PctOfProblematic != nil {
			t.Errorf("connect@%d: pct_of_problematic should be null", pt.ThresholdMinutes)
		}
	}

	var mobile []api.SweepResponse
	decode(t, get(t, h, "/api/v1/datasets/rentals/sweeps?partition=mobile"), &mobile)
	pt := mobile[0].Points[0]
	if pt.ThresholdMinutes != 30 || pt.Count != 1 || pt.PctOfProblematic == nil || *pt.PctOfProblematic != 100 {
		t.Errorf("mobile@30: got %+v", pt)
	}
}

func TestSweeps_BadPartition(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	if rr := get(t, h, "/api/v1/datasets/rentals/sweeps?partition=bus"); rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestSweeps_NullPercentagesInJSON(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	rr := get(t, h, "/api/v1/datasets/rentals/sweeps?partition=connect")
	if !strings.Contains(rr.Body.String(), `"pct_of_problematic":null`) {
		t.Errorf("body should carry null percentages: %s", rr.Body.String())
	}
}

func TestGaps(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	var resp api.GapsResponse
	decode(t, get(t, h, "/api/v1/datasets/rentals/gaps"), &resp)
	if resp.Gaps == nil {
		t.Fatal("gaps: got null")
	}
	if resp.Gaps.Min != 5 || resp.Gaps.Max != 700 || resp.Gaps.Median != 40 {
		t.Errorf("gaps: got %+v", resp.Gaps)
	}
}

func TestInsights(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	var resp []api.InsightResponse
	decode(t, get(t, h, "/api/v1/datasets/rentals/insights"), &resp)
	keys := map[string]bool{}
	for _, in := range resp {
		keys[in.Key] = true
	}
	for _, want := range []string{"late_checkouts", "chained_gaps", "affected_share", "problematic_cases", "recommended_threshold_mobile"} {
		if !keys[want] {
			t.Errorf("insight %q missing", want)
		}
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_ReturnsEmptyArray(t *testing.T) {
	h := api.New(store.New(), nil)
	rr := get(t, h, "/api/v1/alerts")
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("alerts: got %s, want []", body)
	}
}

func TestAlerts_FromSource(t *testing.T) {
	h := api.New(store.New(), fakeAlerts{
		{RuleName: "late", DatasetID: "rentals", State: alerts.StateFiring, Value: 45},
	})
	var resp []alerts.Alert
	decode(t, get(t, h, "/api/v1/alerts"), &resp)
	if len(resp) != 1 || resp[0].RuleName != "late" || resp[0].DatasetID != "rentals" {
		t.Errorf("alerts: got %+v", resp)
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	st := newStore(t, "rentals")
	st.PutError("broken", errors.New("boom"))
	h := api.New(st, nil)

	var resp api.SnapshotResponse
	decode(t, get(t, h, "/api/v1/snapshot"), &resp)
	if len(resp.Datasets) != 2 {
		t.Errorf("datasets: got %d, want 2", len(resp.Datasets))
	}
	if len(resp.Reports) != 1 || resp.Reports[0].DatasetID != "rentals" {
		t.Errorf("reports: got %d", len(resp.Reports))
	}
	if resp.GeneratedAt == "" {
		t.Error("generated_at: empty")
	}
}

// --- cross-cutting ----------------------------------------------------------

func TestMethodNotAllowed(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/datasets",
		"/api/v1/datasets/rentals",
		"/api/v1/alerts",
		"/api/v1/snapshot",
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}

func TestContentTypeJSON(t *testing.T) {
	h := api.New(newStore(t, "rentals"), nil)
	for _, path := range []string{
		"/api/v1/health",
		"/api/v1/datasets",
		"/api/v1/datasets/rentals",
		"/api/v1/datasets/rentals/gaps",
		"/api/v1/alerts",
		"/api/v1/snapshot",
	} {
		rr := get(t, h, path)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: Content-Type got %q, want application/json", path, ct)
		}
	}
}
