package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/speedrpc/internal/common"
	"github.com/dmitrijs2005/speedrpc/internal/logging"
	"github.com/dmitrijs2005/speedrpc/internal/rpc"
)

// fakeTransport records published calls and lets tests inject replies.
type fakeTransport struct {
	mu        sync.Mutex
	published []amqp.Publishing
	replies   chan amqp.Delivery
	pubErr    error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{replies: make(chan amqp.Delivery, 16)}
}

func (f *fakeTransport) DeclareQueue(name string) error { return nil }

func (f *fakeTransport) DeclareReplyQueue() (string, error) { return "amq.gen-reply", nil }

func (f *fakeTransport) Consume(ctx context.Context, queue string, autoAck bool) (<-chan amqp.Delivery, error) {
	return f.replies, nil
}

func (f *fakeTransport) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeTransport) Close() error {
	close(f.replies)
	return nil
}

func (f *fakeTransport) lastPublished(t *testing.T) amqp.Publishing {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.published)
	return f.published[len(f.published)-1]
}

func (f *fakeTransport) reply(correlationID string, res *rpc.Result) {
	body, _ := json.Marshal(res)
	f.replies <- amqp.Delivery{CorrelationId: correlationID, Body: body}
}

func newTestClient(t *testing.T, f *fakeTransport) *Client {
	t.Helper()
	c, err := New(context.Background(), f, "rpc_queue", logging.NewJSON(io.Discard, slog.LevelError))
	require.NoError(t, err)
	return c
}

func TestClient_Call_ResolvesMatchingReply(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	go func() {
		// Wait for the publish, then answer it.
		for {
			f.mu.Lock()
			n := len(f.published)
			f.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		pub := f.lastPublished(t)
		f.reply(pub.CorrelationId, rpc.OK(json.RawMessage(`{"reference":"http://x"}`)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Call(ctx, []byte(`{"op":"measure"}`))
	require.NoError(t, err)
	require.Equal(t, rpc.StatusOK, res.Status)
	require.JSONEq(t, `{"reference":"http://x"}`, string(res.Payload))

	pub := f.lastPublished(t)
	require.Equal(t, "amq.gen-reply", pub.ReplyTo)
	require.NotEmpty(t, pub.CorrelationId)
	require.Equal(t, 0, c.Pending())
}

func TestClient_Call_RoutesConcurrentCallsByCorrelationID(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	const calls = 8

	var wg sync.WaitGroup
	results := make([]*rpc.Result, calls)

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			res, err := c.Call(ctx, []byte(`{}`))
			require.NoError(t, err)
			results[i] = res
		}(i)
	}

	// Answer every published call, in reverse publish order, with a payload
	// that echoes its own correlation id.
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.published) == calls
	}, 5*time.Second, time.Millisecond)

	f.mu.Lock()
	published := append([]amqp.Publishing(nil), f.published...)
	f.mu.Unlock()

	ids := map[string]bool{}
	for i := len(published) - 1; i >= 0; i-- {
		id := published[i].CorrelationId
		require.False(t, ids[id], "correlation ids must be unique")
		ids[id] = true
		payload, _ := json.Marshal(map[string]string{"id": id})
		f.reply(id, rpc.OK(payload))
	}

	wg.Wait()

	// Each caller got a reply; ids were consumed exactly once.
	seen := map[string]bool{}
	for _, res := range results {
		require.NotNil(t, res)
		var p map[string]string
		require.NoError(t, json.Unmarshal(res.Payload, &p))
		require.False(t, seen[p["id"]])
		seen[p["id"]] = true
	}
	require.Equal(t, 0, c.Pending())
}

func TestClient_Call_TimeoutThenLateReplyIsDiscarded(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, []byte(`{}`))
	require.ErrorIs(t, err, common.ErrTimeout)
	require.Equal(t, 0, c.Pending())

	// A reply arriving after the timeout must have no observable effect.
	pub := f.lastPublished(t)
	f.reply(pub.CorrelationId, rpc.OK(json.RawMessage(`{}`)))

	// A subsequent call still works.
	go func() {
		require.Eventually(t, func() bool {
			f.mu.Lock()
			defer f.mu.Unlock()
			return len(f.published) == 2
		}, 5*time.Second, time.Millisecond)
		f.reply(f.lastPublished(t).CorrelationId, rpc.Failed(rpc.ReasonWorkerError, "boom"))
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	res, err := c.Call(ctx2, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, rpc.StatusFailed, res.Status)
	require.Equal(t, rpc.ReasonWorkerError, res.Reason)
}

func TestClient_Call_ExplicitCancel(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Call(ctx, []byte(`{}`))
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, common.ErrTimeout)
	require.Equal(t, 0, c.Pending())
}

func TestClient_Call_PublishFailureSurfacesInfrastructureError(t *testing.T) {
	f := newFakeTransport()
	f.pubErr = common.ErrInfrastructure
	c := newTestClient(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := c.Call(ctx, []byte(`{}`))
	require.ErrorIs(t, err, common.ErrInfrastructure)
	require.Equal(t, 0, c.Pending())
}

func TestClient_TransportClosed_FailsPendingCalls(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := c.Call(ctx, []byte(`{}`))
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return len(f.published) == 1
	}, 5*time.Second, time.Millisecond)

	f.Close()

	require.ErrorIs(t, <-errCh, common.ErrInfrastructure)
}

func TestClient_Demux_DropsReplyWithoutCorrelationID(t *testing.T) {
	f := newFakeTransport()
	c := newTestClient(t, f)

	f.replies <- amqp.Delivery{Body: []byte(`{"status":"ok"}`)}

	// The demux must survive; a normal call still resolves.
	go func() {
		require.Eventually(t, func() bool {
			f.mu.Lock()
			defer f.mu.Unlock()
			return len(f.published) == 1
		}, 5*time.Second, time.Millisecond)
		f.reply(f.lastPublished(t).CorrelationId, rpc.OK(json.RawMessage(`{}`)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := c.Call(ctx, []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, rpc.StatusOK, res.Status)
}
