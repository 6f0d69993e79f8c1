// Package httputil provides the HTTP client used against the phaseline
// control plane.
//
// # Overview
//
// This package provides infrastructure shared by CLI commands that talk
// to a running `phaseline serve` process:
//
//   - [Client]: JSON request helper bound to a base URL
//   - [Retry]: Automatic retry with exponential backoff
//
// # Client
//
// [Client] wraps GET and POST requests with JSON decoding and error
// mapping. API errors become Go errors carrying the server's message:
//
//	client := httputil.NewClient("http://127.0.0.1:7743")
//	var status registry.Status
//	err := client.GetJSON(ctx, "/phases/acquire", &status)
//
// # Retry
//
// Transient failures are retried automatically:
//
//   - Network errors
//   - 5xx server errors
//
// Client errors (4xx) are returned immediately. Retries use exponential
// backoff: 3 attempts with a 1 second initial delay, doubling each time.
package httputil
