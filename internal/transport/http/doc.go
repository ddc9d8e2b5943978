// Package http exposes the conversion service over HTTP. Handlers stay
// thin: they parse requests, call the run manager, and render JSON.
//
// A conversion request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → pipeline.Manager
//	                                              ↓
//	HTTP Response ← render.JSON ← Snapshot ←─────┘
//
// Errors render as structured APIError responses; panics are recovered
// into RFC 7807 problem documents. Progress streaming happens over the
// /ws endpoint via the websocket hub, not through these handlers.
package http
