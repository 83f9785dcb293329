package runtime

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kvale/busrpc/internal/runtime/channelpool"
	configpkg "github.com/kvale/busrpc/internal/runtime/config"
	"github.com/kvale/busrpc/internal/runtime/envelope"
	errspkg "github.com/kvale/busrpc/internal/runtime/errors"
	idspkg "github.com/kvale/busrpc/internal/runtime/ids"
	"github.com/kvale/busrpc/internal/runtime/jsoncodec"
	loggingpkg "github.com/kvale/busrpc/internal/runtime/logging"
)

// Request describes one RPC call.
type Request struct {
	// Kind selects the worker-side handler and payload schema.
	Kind string
	// RoutingKey addresses the queue the request is routed to.
	RoutingKey string
	// Payload is serialized as the message body. May be nil.
	Payload any
	// Timeout bounds the caller's wait and rides along in the headers for the
	// worker's staleness check. Zero applies Config.DefaultTimeout.
	Timeout time.Duration
	// ExecuteIfTimeout lets the worker run the handler even when the request
	// arrives past its timeout; the reply is suppressed either way.
	ExecuteIfTimeout bool
}

// Caller gives synchronous request/reply semantics on top of the broker. One
// Caller owns one durable reply queue and one background reply listener; any
// number of goroutines may issue Calls against it concurrently.
type Caller struct {
	conf    *configpkg.Config
	logger  loggingpkg.ServiceLogger
	pool    *channelpool.Pool
	pending *pendingStore

	conn    *amqp.Connection
	replyCh *amqp.Channel
	closed  atomic.Bool
}

// NewCaller connects to the broker, declares the instance's durable reply
// queue, and starts the reply listener. Call Close when done.
func NewCaller(conf *configpkg.Config, log loggingpkg.ServiceLogger) (*Caller, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if err := conf.ValidateCaller(); err != nil {
		return nil, err
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}

	conn, err := DialFactory(conf.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open reply channel: %w", err)
	}

	if _, err := ch.QueueDeclare(conf.ReplyQueue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare reply queue %q: %w", conf.ReplyQueue, err)
	}

	// Replies are auto-acked on receipt. A reply lost between broker delivery
	// and slot resolution degrades to a caller-side timeout; the worker-side
	// effect, if any, already happened.
	deliveries, err := ch.Consume(conf.ReplyQueue, instanceTag(conf.ReplyQueue, 0), true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("consume reply queue %q: %w", conf.ReplyQueue, err)
	}

	c := newCaller(conf, log, channelpool.New(conf.PoolSize(), poolFactory(conn)), deliveries)
	c.conn = conn
	c.replyCh = ch

	serveMetrics(conf, log)
	return c, nil
}

// newCaller wires a caller around an already-consuming reply stream.
func newCaller(conf *configpkg.Config, log loggingpkg.ServiceLogger, pool *channelpool.Pool, replies <-chan amqp.Delivery) *Caller {
	c := &Caller{
		conf:    conf,
		logger:  log,
		pool:    pool,
		pending: newPendingStore(),
	}
	go c.listen(replies)
	return c
}

// Call publishes the request and blocks until its reply arrives or the
// timeout expires, whichever happens first. A timeout yields a synthesized
// TEMPORARY_UNAVAILABLE response, not an error: errors are reserved for
// transport failures surfaced synchronously.
func (c *Caller) Call(ctx context.Context, req Request) (envelope.Response, error) {
	if c.closed.Load() {
		return envelope.Response{}, errspkg.ErrCallerClosed
	}
	if req.Kind == "" {
		return envelope.Response{}, errspkg.ErrKindRequired
	}
	if req.RoutingKey == "" {
		return envelope.Response{}, errspkg.ErrRoutingKeyRequired
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.conf.CallTimeout()
	}

	ctx, span := tracer.Start(ctx, "busrpc.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("messaging.message.type", req.Kind),
			attribute.String("messaging.destination.name", req.RoutingKey),
		))
	defer span.End()

	body, err := marshalPayload(req.Payload)
	if err != nil {
		return envelope.Response{}, fmt.Errorf("marshal payload: %w", err)
	}

	id := idspkg.CorrelationID()
	entry := &pendingRequest{slot: make(chan []byte, 1), createdAt: time.Now()}
	c.pending.put(id, entry)
	inflightRequests.Inc()

	pub := amqp.Publishing{
		ContentType:   contentTypeJSON,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: id,
		ReplyTo:       c.conf.ReplyQueue,
		Type:          req.Kind,
		Timestamp:     time.Now(),
		Headers: amqp.Table{
			HeaderTimeoutSeconds:   int32(timeout / time.Second),
			HeaderExecuteIfTimeout: req.ExecuteIfTimeout,
		},
		Body: body,
	}

	if err := c.publish(ctx, req.RoutingKey, pub); err != nil {
		// Transport failure, not a protocol timeout: unregister the wait and
		// surface it immediately.
		c.pending.remove(id)
		inflightRequests.Dec()
		span.RecordError(err)
		return envelope.Response{}, err
	}
	requestsTotal.WithLabelValues(req.Kind).Inc()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case raw := <-entry.slot:
		inflightRequests.Dec()
		resp, err := envelope.Decode(raw)
		if err != nil {
			span.RecordError(err)
			return envelope.Response{}, fmt.Errorf("decode reply: %w", err)
		}
		return resp, nil

	case <-timer.C:
		// Remove is a no-op if the listener resolved the entry at the same
		// instant; whichever side takes it first wins.
		c.pending.remove(id)
		inflightRequests.Dec()
		requestTimeoutsTotal.Inc()
		c.logger.Debug("Request timed out", loggingpkg.LogFields{
			"correlation_id": id,
			"kind":           req.Kind,
			"timeout":        timeout.String(),
		})
		return envelope.Failure(envelope.KindTemporaryUnavailable, "service is temporarily unavailable"), nil

	case <-ctx.Done():
		c.pending.remove(id)
		inflightRequests.Dec()
		return envelope.Response{}, ctx.Err()
	}
}

// Notify publishes a fire-and-forget message: no reply-to, no correlation
// tracking, no wait.
func (c *Caller) Notify(ctx context.Context, kind, routingKey string, payload any) error {
	if c.closed.Load() {
		return errspkg.ErrCallerClosed
	}
	if kind == "" {
		return errspkg.ErrKindRequired
	}
	if routingKey == "" {
		return errspkg.ErrRoutingKeyRequired
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Type:         kind,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := c.publish(ctx, routingKey, pub); err != nil {
		return err
	}
	requestsTotal.WithLabelValues(kind).Inc()
	return nil
}

func (c *Caller) publish(ctx context.Context, routingKey string, pub amqp.Publishing) error {
	ch, err := c.pool.Borrow()
	if err != nil {
		return fmt.Errorf("borrow publish channel: %w", err)
	}
	err = ch.PublishWithContext(ctx, "", routingKey, false, false, pub)
	c.pool.Return(ch)
	if err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	return nil
}

// Close releases broker resources. In-flight Calls resolve through their own
// timeouts; new Calls fail with ErrCallerClosed.
func (c *Caller) Close() error {
	c.closed.Store(true)
	c.pool.Close()
	if c.replyCh != nil {
		_ = c.replyCh.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func marshalPayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.([]byte); ok {
		return raw, nil
	}
	return jsoncodec.Marshal(payload)
}
