// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz for liveness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/statistics for the call statistics report and
//     GET/PUT /v1/statistics/enabled to toggle collection.
//   - GET /v1/objects/{type}/{va}[/{name}] for the object renderers.
//   - POST/GET /v1/scans for background page scans over the attached device.
package api
