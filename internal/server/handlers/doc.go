// Package handlers contains the HTTP handlers of the render server.
//
// This package provides handlers for:
//   - Liveness and readiness endpoints (monitoring)
//   - Server-side rendering of routes, as HTML pages or JSON documents
//   - Shared response helper functions
//
// Errors are reported through the classified errors package and its
// HTTPErrorAdapter; JSON payloads use the server/responses types.
package handlers
