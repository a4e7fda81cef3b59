// Package client implements the caller side of the broker RPC engine.
//
// One shared, exclusive reply queue serves all outstanding calls of a client
// instance. A single demux goroutine reads replies and routes each one to the
// waiting caller by correlation id; callers that timed out or cancelled have
// already left the pending table, so their late replies are dropped.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmitrijs2005/speedrpc/internal/common"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
	"github.com/dmitrijs2005/speedrpc/internal/rpc"
	"github.com/dmitrijs2005/speedrpc/internal/transport"
)

// Client issues calls over the request queue and awaits correlated replies.
type Client struct {
	ch         transport.Transport
	queue      string
	replyQueue string
	pending    *xsync.MapOf[string, chan *rpc.Result]
	logger     logging.Logger
	done       chan struct{}
}

// New declares the shared reply queue and starts the reply demultiplexer.
// The caller owns the transport and must Close it after closing the client.
func New(ctx context.Context, ch transport.Transport, requestQueue string, logger logging.Logger) (*Client, error) {
	replyQueue, err := ch.DeclareReplyQueue()
	if err != nil {
		return nil, err
	}

	deliveries, err := ch.Consume(ctx, replyQueue, true)
	if err != nil {
		return nil, err
	}

	c := &Client{
		ch:         ch,
		queue:      requestQueue,
		replyQueue: replyQueue,
		pending:    xsync.NewMapOf[string, chan *rpc.Result](),
		logger:     logger,
		done:       make(chan struct{}),
	}

	go c.demux(ctx, deliveries)

	return c, nil
}

// Call publishes payload to the request queue and waits for the correlated
// reply. The deadline (and explicit cancellation) come from ctx; on deadline
// expiry the pending call is removed and common.ErrTimeout returned. A reply
// arriving after that has no observable effect.
func (c *Client) Call(ctx context.Context, payload []byte) (*rpc.Result, error) {
	id := uuid.NewString()

	resCh := make(chan *rpc.Result, 1)
	if _, loaded := c.pending.LoadOrStore(id, resCh); loaded {
		return nil, errors.New("correlation id already in flight")
	}
	defer c.pending.Delete(id)

	err := c.ch.Publish(ctx, c.queue, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: id,
		ReplyTo:       c.replyQueue,
		Timestamp:     time.Now(),
		Body:          payload,
	})
	if err != nil {
		return nil, err
	}

	select {
	case res := <-resCh:
		return res, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, common.ErrTimeout
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, common.ErrInfrastructure
	}
}

// demux routes each incoming reply to its pending call. Replies with an
// unknown correlation id (late, cancelled, or foreign) are discarded.
func (c *Client) demux(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(c.done)

	for d := range deliveries {
		if d.CorrelationId == "" {
			c.logger.Warn(ctx, "reply without correlation id dropped")
			continue
		}

		resCh, ok := c.pending.LoadAndDelete(d.CorrelationId)
		if !ok {
			c.logger.Debug(ctx, "late reply discarded", "correlation_id", d.CorrelationId)
			continue
		}

		var res rpc.Result
		if err := json.Unmarshal(d.Body, &res); err != nil {
			c.logger.Warn(ctx, "malformed reply dropped", "correlation_id", d.CorrelationId, "error", err)
			continue
		}

		// Buffered channel: the caller may have just timed out, in which
		// case the value is simply never read.
		resCh <- &res
	}
}

// ReplyQueue returns the name of the shared reply queue.
func (c *Client) ReplyQueue() string {
	return c.replyQueue
}

// Pending reports the number of outstanding calls.
func (c *Client) Pending() int {
	return c.pending.Size()
}
