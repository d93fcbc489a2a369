// Package timeouts defines shared timeout constants for the admin processes.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Request caps a single admin request's storage work.
const Request = 10 * time.Second

// Import caps a whole import run, dry run included.
const Import = 2 * time.Minute
