package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// Status is "ok" when every dataset loaded, "degraded" when some failed,
	// "unknown" when none are configured.
	Status       string `json:"status"`
	DatasetCount int    `json:"dataset_count"`
	ReadyCount   int    `json:"ready_count"`
	FailedCount  int    `json:"failed_count"`
	AlertCount   int    `json:"alert_count"`
}

// DatasetSummary is one entry in GET /api/v1/datasets.
type DatasetSummary struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "ready" | "failed"
	Error  string `json:"error,omitempty"`

	Rows             int     `json:"rows"`
	LateRatePct      float64 `json:"late_rate_pct"`
	ProblematicCases int     `json:"problematic_cases"`
	WarningCount     int     `json:"warning_count"`

	LoadedAt string `json:"loaded_at"` // RFC3339
}

// ReportResponse is the payload for GET /api/v1/datasets/{id}.
type ReportResponse struct {
	DatasetID   string `json:"dataset_id"`
	GeneratedAt string `json:"generated_at"` // RFC3339
	LoadedAt    string `json:"loaded_at"`    // RFC3339
	Thresholds  []int  `json:"thresholds"`

	Totals TotalsResponse `json:"totals"`
	Rates  RatesResponse  `json:"rates"`

	Gaps    *GapSummaryResponse `json:"gaps"`
	Methods []MethodResponse    `json:"methods"`
	Sweeps  []SweepResponse     `json:"sweeps"`

	Warnings []string          `json:"warnings"`
	Insights []InsightResponse `json:"insights"`
}

// TotalsResponse holds the headline counts of a dataset.
type TotalsResponse struct {
	Rows        int `json:"rows"`
	Late        int `json:"late"`
	Chained     int `json:"chained"`
	Problematic int `json:"problematic"`
	Affected    int `json:"affected"`
	// Skipped counts input rows without a checkout delay.
	Skipped int `json:"skipped_rows"`
}

// RatesResponse holds the headline percentages of a dataset.
type RatesResponse struct {
	OnTimePct      float64 `json:"on_time_pct"`
	LatePct        float64 `json:"late_pct"`
	AffectedPct    float64 `json:"affected_pct"`
	ProblematicPct float64 `json:"problematic_pct"`
}

// GapSummaryResponse is the distribution of positive gaps, in minutes.
type GapSummaryResponse struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// GapsResponse is the payload for GET /api/v1/datasets/{id}/gaps.
// Gaps is null when no rental follows a previous one.
type GapsResponse struct {
	DatasetID string              `json:"dataset_id"`
	Gaps      *GapSummaryResponse `json:"gaps"`
}

// MethodResponse is one check-in method's share of rentals.
type MethodResponse struct {
	Method      string   `json:"method"`
	Rows        int      `json:"rows"`
	SharePct    float64  `json:"share_pct"`
	LateRatePct *float64 `json:"late_rate_pct"`
}

// SweepResponse is one partition's threshold sweep, a named series for the
// dashboard charts.
type SweepResponse struct {
	Partition   string          `json:"partition"`
	Rows        int             `json:"rows"`
	Problematic int             `json:"problematic"`
	Points      []PointResponse `json:"points"`
}

// PointResponse is one threshold of a sweep. Percentages are null when the
// denominator is zero.
type PointResponse struct {
	ThresholdMinutes int      `json:"threshold_minutes"`
	Count            int      `json:"count"`
	PctOfProblematic *float64 `json:"pct_of_problematic"`
	PctOfTotal       *float64 `json:"pct_of_total"`
}

// InsightResponse is one narrative finding about a dataset.
type InsightResponse struct {
	Key    string   `json:"key"`
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Datasets    []DatasetSummary `json:"datasets"`
	Reports     []ReportResponse `json:"reports"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
