// Package api implements the HTTP REST API and WebSocket feed for Prysma Core.
//
// This package provides:
//   - REST endpoints to list, add, edit and remove lights and to command their state
//   - A WebSocket hub relaying light fan-out events to subscribed clients
//   - Optional JWT bearer authentication with role permissions
//   - Middleware stack (request ID, logging, recovery, CORS, rate limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The server is a thin adapter over light.Service. Commands go through the
// service to the MQTT broker; state changes flow back through the reconciler
// and reach WebSocket clients via the fanout broker:
//
//	HTTP ──▶ light.Service ──▶ MQTT
//	                             │
//	WebSocket ◀── fanout ◀── light.Reconciler
//
// # Graceful Degradation
//
// The server operates without a broker connection: reads and the WebSocket
// feed keep working, and state commands fail with 503 Service Unavailable.
package api
