// Package rpc defines the request/reply envelope types exchanged over the
// broker. The correlation id and reply address travel as message properties;
// the body is a JSON document.
package rpc

import "encoding/json"

// Status of a completed call.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Machine-readable failure reasons carried in a failed Result.
const (
	// ReasonWorkerError: the worker raised an error or panicked.
	ReasonWorkerError = "worker_error"
	// ReasonStorageExhausted: the result was computed but could not be
	// persisted before the retry budget ran out.
	ReasonStorageExhausted = "storage_exhausted"
	// ReasonContentRejected: storage refused the content outright.
	ReasonContentRejected = "content_rejected"
	// ReasonBadRequest: the request payload could not be interpreted.
	ReasonBadRequest = "bad_request"
)

// Result is the reply body published to the caller's reply queue.
// Payload is present iff Status is StatusOK.
type Result struct {
	Status  Status          `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OK builds a successful Result with the given payload.
func OK(payload json.RawMessage) *Result {
	return &Result{Status: StatusOK, Payload: payload}
}

// Failed builds a failed Result with a machine-readable reason and a
// human-readable message.
func Failed(reason, message string) *Result {
	return &Result{Status: StatusFailed, Reason: reason, Message: message}
}

// Reference is the payload attached to a successful Result: a stable,
// externally resolvable locator for the persisted artifact.
type Reference struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
