/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package docsubmit provides a client that signs documents and submits them to a remote API
// without exceeding the configured number of API calls per fixed time window.
//
// Every submission passes the admission gate first. Admitted submissions are signed and sent by a pool
// of workers, and the outcome is reported through observers (log, Prometheus metrics and an optional
// custom observer). A submission rejected by the gate is never queued: the caller decides whether
// to try again in the next window.
package docsubmit
