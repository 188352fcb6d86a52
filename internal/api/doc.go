// Package api implements the HTTP REST API and WebSocket stream for the
// LG TV bridge.
//
// This package provides:
//   - Serial port discovery and config entry management (provision,
//     options, remove), the HTTP face of the setup flow
//   - Entity listing, state reads and actions
//   - A WebSocket hub broadcasting entity.state_changed events
//   - Prometheus metrics at /metrics
//   - Optional JWT bearer authentication with role permissions
//
// # Security
//
// When security.jwt.secret is empty the API is open, which suits a
// trusted installer LAN. Otherwise every /api/v1 route except health
// requires a bearer token. WebSocket clients exchange their token for a
// single-use ticket so the JWT never appears in a URL.
//
// # Errors
//
// Setup failures are returned the way a configuration form shows them:
// 422 with {"errors": {"base": "cannot_connect"}} (or value_error,
// exception), and 409 with reason already_configured for duplicates.
package api
