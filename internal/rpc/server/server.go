// Package server implements the worker side of the broker RPC engine: it
// owns the durable request queue, dispatches calls to the worker, persists
// successful results through the upload pipeline, and replies to the caller's
// reply queue.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrijs2005/speedrpc/internal/admin"
	"github.com/dmitrijs2005/speedrpc/internal/common"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
	"github.com/dmitrijs2005/speedrpc/internal/rpc"
	"github.com/dmitrijs2005/speedrpc/internal/transport"
	"github.com/dmitrijs2005/speedrpc/internal/upload"
)

// Outage keys reported to the admin channel.
const (
	OutageBrokerPublish = "broker_publish"
	OutageStorage       = "storage"
)

// dedupRetention is how long a completed correlation id is remembered to
// absorb broker redeliveries of already-answered calls.
const dedupRetention = 5 * time.Minute

// Uploader persists a result and returns its reference. Implemented by
// *upload.Uploader.
type Uploader interface {
	Upload(ctx context.Context, content []byte, destination string) (*upload.Reference, error)
}

// RPCServer consumes the request queue and answers each call exactly once
// per delivery, acking only after the reply has been published.
type RPCServer struct {
	ch       transport.Transport
	queue    string
	worker   rpc.Worker
	uploader Uploader
	notifier *admin.Coalescer
	logger   logging.Logger

	// seen tracks correlation ids that are in flight or recently answered,
	// so a redelivered envelope is not dispatched twice.
	seen *xsync.MapOf[string, struct{}]

	// retainFor is overridable in tests.
	retainFor time.Duration
}

func New(ch transport.Transport, queue string, worker rpc.Worker, uploader Uploader, notifier *admin.Coalescer, logger logging.Logger) *RPCServer {
	return &RPCServer{
		ch:        ch,
		queue:     queue,
		worker:    worker,
		uploader:  uploader,
		notifier:  notifier,
		logger:    logger,
		seen:      xsync.NewMapOf[string, struct{}](),
		retainFor: dedupRetention,
	}
}

// Serve declares the request queue and processes deliveries until ctx is
// cancelled or the delivery stream closes. Each delivery is handled in its
// own goroutine so a slow worker never blocks acceptance of other calls.
func (s *RPCServer) Serve(ctx context.Context) error {
	if err := s.ch.DeclareQueue(s.queue); err != nil {
		return err
	}

	deliveries, err := s.ch.Consume(ctx, s.queue, false)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "serving", "queue", s.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery stream closed", common.ErrInfrastructure)
			}
			go s.handle(ctx, d)
		}
	}
}

func (s *RPCServer) handle(ctx context.Context, d amqp.Delivery) {
	log := s.logger.With("correlation_id", d.CorrelationId)

	// Protocol errors: consumed and dropped, never crash the loop and never
	// produce a reply. The caller times out, which is the visible contract.
	if d.CorrelationId == "" || d.ReplyTo == "" {
		log.Warn(ctx, "malformed envelope dropped", "reply_to", d.ReplyTo)
		if err := d.Ack(false); err != nil {
			log.Error(ctx, "ack failed", "error", err)
		}
		return
	}

	// At-least-once redelivery dedup: if this id is already in flight or
	// was answered recently, the original handler owns (or owned) the reply.
	if _, dup := s.seen.LoadOrStore(d.CorrelationId, struct{}{}); dup {
		log.Info(ctx, "duplicate delivery dropped")
		if err := d.Ack(false); err != nil {
			log.Error(ctx, "ack failed", "error", err)
		}
		return
	}

	result := s.process(ctx, d.CorrelationId, d.Body)

	body, err := json.Marshal(result)
	if err != nil {
		log.Error(ctx, "reply marshal failed", "error", err)
		body = []byte(`{"status":"failed","reason":"worker_error"}`)
	}

	err = s.ch.Publish(ctx, d.ReplyTo, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
	if err != nil {
		// Leave the message unacknowledged so the broker redelivers it.
		log.Error(ctx, "reply publish failed, requeueing", "error", err)
		s.notifier.Fail(ctx, OutageBrokerPublish, fmt.Sprintf("rpc reply publish failing: %v", err))
		s.seen.Delete(d.CorrelationId)
		if err := d.Nack(false, true); err != nil {
			log.Error(ctx, "nack failed", "error", err)
		}
		return
	}
	s.notifier.Recover(OutageBrokerPublish)

	// Ack strictly after the reply is out: a crash between publish and ack
	// causes a redelivery, which the dedup window absorbs.
	if err := d.Ack(false); err != nil {
		log.Error(ctx, "ack failed", "error", err)
	}

	id := d.CorrelationId
	time.AfterFunc(s.retainFor, func() { s.seen.Delete(id) })

	log.Info(ctx, "call answered", "status", result.Status, "reason", result.Reason)
}

// process runs the worker and, on success, the upload pipeline. All failures
// are contained here and converted into a failed Result.
func (s *RPCServer) process(ctx context.Context, correlationID string, payload []byte) *rpc.Result {
	res, err := s.dispatch(ctx, payload)
	if err != nil {
		if errors.Is(err, common.ErrMalformedEnvelope) || errors.Is(err, common.ErrUnknownReportType) {
			return rpc.Failed(rpc.ReasonBadRequest, err.Error())
		}
		return rpc.Failed(rpc.ReasonWorkerError, err.Error())
	}

	destination := path.Join("reports", correlationID, res.FileName)

	ref, err := s.uploader.Upload(ctx, res.Content, destination)
	if err != nil {
		if errors.Is(err, common.ErrContentRejected) {
			return rpc.Failed(rpc.ReasonContentRejected, err.Error())
		}
		s.notifier.Fail(ctx, OutageStorage, fmt.Sprintf("upload pipeline exhausted: %v", err))
		return rpc.Failed(rpc.ReasonStorageExhausted, err.Error())
	}
	s.notifier.Recover(OutageStorage)

	body, err := json.Marshal(rpc.Reference{Key: ref.Key, URL: ref.URL})
	if err != nil {
		return rpc.Failed(rpc.ReasonWorkerError, err.Error())
	}

	return rpc.OK(body)
}

// dispatch invokes the worker, converting panics into errors so a misbehaving
// worker can never take down the serve loop.
func (s *RPCServer) dispatch(ctx context.Context, payload []byte) (res *rpc.WorkerResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", common.ErrWorker, r)
		}
	}()
	return s.worker.Execute(ctx, payload)
}
