/*
Package httpserver serves reporteer's read-only HTTP views.

Every request reads a snapshot of the shared state.Store; no handler writes to
it and no handler fails because an upstream step degraded at startup.

# Endpoints

  - GET / - HTML page with the derived key hash and the attestation report text
  - GET /api/hash - {"derived_key_hash": "..."}
  - GET /api/report - the report envelope, or {"attestation_report": "..."} when none was produced
  - GET /health - {"status":"healthy"}, always 200

Operational endpoints:

  - GET /readyz - Readiness check
  - GET /drain - Mark server as not ready
  - GET /undrain - Mark server as ready
  - /debug/* - pprof, when enabled

Prometheus metrics are served by a separate listener, see package metrics.
*/
package httpserver
