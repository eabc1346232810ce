// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Handlers use these helpers instead of writing raw http.ResponseWriter
// calls, so every endpoint returns the same JSON envelope and error shape.
// Internal error details are logged, never returned to clients.
package httputil
