// Package api implements the monitor's read-only HTTP REST API.
//
// New(store, opts...) returns an http.Handler that serves:
//
//	GET /api/v1/health       feed state, latest rate, message counters
//	GET /api/v1/rates        rate samples within retention, oldest first
//	GET /api/v1/ticker       current ticker text; 404 before the first one
//	GET /api/v1/annotations  chart annotations, oldest first
//	GET /api/v1/alerts       firing and recently resolved rate alerts
//	GET /api/v1/snapshot     rates, ticker and annotations in one document
//	GET /api/v1/diagnostics  plain-language hints about feed health
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. JSON types are defined in types.go.
package api
