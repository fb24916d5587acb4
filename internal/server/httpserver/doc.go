// Package httpserver serves the operations endpoint of tokgate-server:
//
//   - GET /metrics: Prometheus exposition
//   - GET /health, GET /ready: liveness and readiness probes
//   - GET /status: connection counters and build information as JSON
//   - GET, PUT /loglevel: read or change the runtime log level
//
// Every route passes through Recover, RequestID, AccessLog and an optional
// network allowlist.
package httpserver
