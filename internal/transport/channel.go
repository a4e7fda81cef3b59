// Package transport provides the broker substrate for the RPC engine: one
// durable named queue for requests and exclusive auto-delete queues for
// replies, carried over AMQP 0-9-1.
package transport

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/speedrpc/internal/common"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
)

// Transport is the subset of channel operations the RPC client and server
// depend on.
type Transport interface {
	// DeclareQueue declares the durable request queue.
	DeclareQueue(name string) error

	// DeclareReplyQueue declares a server-named, exclusive, auto-delete
	// queue and returns its name. The queue disappears when the declaring
	// connection closes.
	DeclareReplyQueue() (string, error)

	// Consume starts delivering messages from the queue. Deliveries must be
	// acked or nacked by the consumer.
	Consume(ctx context.Context, queue string, autoAck bool) (<-chan amqp.Delivery, error)

	// Publish sends a message to the given routing key on the default
	// exchange, retrying transient failures a bounded number of times.
	Publish(ctx context.Context, key string, msg amqp.Publishing) error

	Close() error
}

// amqpChannel is implemented by *amqp.Channel. Kept narrow so tests can
// substitute a fake.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Channel wraps a single AMQP connection and channel.
type Channel struct {
	conn   *amqp.Connection
	ch     amqpChannel
	logger logging.Logger

	publishAttempts uint64
	publishBase     time.Duration
}

var _ Transport = (*Channel)(nil)

// Dial connects to the broker at the given AMQP URL. Publish failures are
// retried up to publishAttempts times with exponential backoff starting at
// publishBase.
func Dial(url string, publishAttempts uint64, publishBase time.Duration, logger logging.Logger) (*Channel, error) {
	if publishAttempts == 0 {
		publishAttempts = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", common.ErrInfrastructure, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: channel: %v", common.ErrInfrastructure, err)
	}

	return &Channel{
		conn:            conn,
		ch:              ch,
		logger:          logger,
		publishAttempts: publishAttempts,
		publishBase:     publishBase,
	}, nil
}

// URL assembles an AMQP connection URL from its parts.
func URL(user, password, host string, port int) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", user, password, host, port)
}

func (c *Channel) DeclareQueue(name string) error {
	_, err := c.ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: declare %q: %v", common.ErrInfrastructure, name, err)
	}
	return nil
}

func (c *Channel) DeclareReplyQueue() (string, error) {
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", fmt.Errorf("%w: declare reply queue: %v", common.ErrInfrastructure, err)
	}
	return q.Name, nil
}

func (c *Channel) Consume(ctx context.Context, queue string, autoAck bool) (<-chan amqp.Delivery, error) {
	deliveries, err := c.ch.ConsumeWithContext(ctx, queue, "", autoAck, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: consume %q: %v", common.ErrInfrastructure, queue, err)
	}
	return deliveries, nil
}

func (c *Channel) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	backoff := retry.NewExponential(c.publishBase)
	backoff = retry.WithJitter(c.publishBase/2, backoff)
	backoff = retry.WithMaxRetries(c.publishAttempts-1, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.ch.PublishWithContext(ctx, "", key, false, false, msg); err != nil {
			c.logger.Warn(ctx, "publish failed, will retry", "key", key, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: publish to %q: %v", common.ErrInfrastructure, key, err)
	}
	return nil
}

func (c *Channel) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return c.ch.Close()
}
