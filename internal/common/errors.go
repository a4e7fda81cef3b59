// Package common defines shared sentinel errors used across the client and
// server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Transport-level errors.
	ErrInfrastructure = errors.New("infrastructure unavailable")
	ErrTimeout        = errors.New("call timed out")

	// Protocol errors (malformed or incomplete envelopes).
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// Worker errors (caught at the dispatch boundary).
	ErrWorker            = errors.New("worker error")
	ErrUnknownReportType = errors.New("unknown report type")

	// Upload pipeline terminal errors.
	ErrStorageExhausted = errors.New("storage retries exhausted")
	ErrContentRejected  = errors.New("content rejected by storage")
)
