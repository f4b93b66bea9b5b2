// Package api implements the HTTP REST API for the delayboard server.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health                  overall status and dataset counts
//	GET /api/v1/datasets                one summary per configured dataset
//	GET /api/v1/datasets/{id}           full report; 422 if the load failed
//	GET /api/v1/datasets/{id}/sweeps    threshold sweeps (?partition=all|mobile|connect)
//	GET /api/v1/datasets/{id}/gaps      gap distribution between chained rentals
//	GET /api/v1/datasets/{id}/insights  narrative insights
//	GET /api/v1/alerts                  firing and recently resolved alerts
//	GET /api/v1/snapshot                summaries and reports of all datasets + generated_at
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Return 404 for an unknown dataset id
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
