// Package ws implements the WebSocket hub that pushes display updates to
// browsers.
//
// Hub implements the pipeline sinks. Every sink call is pushed to all
// connected clients as it happens; a client that cannot keep up is
// disconnected. On connect a client first receives the full display state.
//
// Message format sent to clients:
//
//	{ "event": "snapshot",   "data": { /* GET /api/v1/snapshot schema */ } }
//	{ "event": "rate",       "data": { "value": 2.0, "at": "..." } }
//	{ "event": "ticker",     "data": { "text": "...", "updated_at": "..." } }
//	{ "event": "annotation", "data": { "kind": "newuser", "at": "..." } }
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream.
package ws
