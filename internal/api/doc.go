// Package api implements the HTTP API and WebSocket feed for homehub.
//
// This package provides:
//   - GET /metrics: Prometheus text exposition of the metric registry
//   - /api/v1/heater: command ingress plus read-only state and raw history
//   - /s/{id}/ and /s/{id}/{value}: virtual switch status and control
//   - /api/v1/ws: live telemetry readings relayed from the event bus
//   - /api/v1/health: dependency health
//
// # WebSocket frames
//
// Clients send {"type":"subscribe","id":"1","payload":{"names":["roomA"]}}
// to start receiving "reading" frames; an empty filter matches every
// series. Subscribing replays the latest value of each matching series.
//
// # Security
//
// When security.jwt.secret is set, command and switch-set routes require an
// HS256 bearer token and WebSocket connections require a single-use ticket
// from POST /api/v1/auth/ws-ticket. With no secret every route is open.
//
// # Errors
//
// Heater command errors map to status codes: invalid command 400, property
// not yet reported 409, appliance disconnected 503, broker write failure 502.
package api
