package rpc

import "context"

// WorkerResult is the output of a successful worker invocation: the content
// to persist and the file name it should be stored under.
type WorkerResult struct {
	FileName string
	Content  []byte
}

// Worker executes the operation requested by a call payload. Implementations
// may be slow and may fail; the server treats them as opaque and never
// assumes a completion bound.
type Worker interface {
	Execute(ctx context.Context, payload []byte) (*WorkerResult, error)
}
