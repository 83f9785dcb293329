package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kvale/busrpc/internal/runtime/channelpool"
	configpkg "github.com/kvale/busrpc/internal/runtime/config"
	"github.com/kvale/busrpc/internal/runtime/envelope"
	errspkg "github.com/kvale/busrpc/internal/runtime/errors"
	loggingpkg "github.com/kvale/busrpc/internal/runtime/logging"
)

// prefetchCount bounds every consumer instance to one unacknowledged
// delivery. Throughput scales by running more instances on the same queue,
// not by widening a single consumer.
const prefetchCount = 1

// Scope is the per-delivery unit of work handed to handlers. A fresh scope
// is opened for every message and closed when the handler returns, so one
// message's failure never leaks state into another.
type Scope interface {
	Close() error
}

// ScopeFactory opens a Scope for one delivery. Implementations typically
// begin a transaction or hand out a request-scoped repository.
type ScopeFactory func(ctx context.Context) (Scope, error)

// WorkerDependencies holds the collaborators a Worker consumes.
type WorkerDependencies struct {
	// Queue is the queue this worker consumes. Required.
	Queue string
	// Scopes opens the per-delivery unit of work. Optional; handlers receive
	// a nil Scope when absent.
	Scopes ScopeFactory
	// Classifier overrides the default handler-error classification.
	Classifier ErrorClassifier
	// Policy overrides the staleness evaluation applied to every delivery.
	Policy TimeoutPolicy
}

// Worker consumes one queue and dispatches each delivery to the handler
// registered for its message kind. Config.ConsumerInstances launches that
// many competing consumers, each with an independent channel and consumer
// tag; the broker assigns every delivery to exactly one of them.
type Worker struct {
	conf     *configpkg.Config
	logger   loggingpkg.ServiceLogger
	queue    string
	scopes   ScopeFactory
	classify ErrorClassifier
	policy   TimeoutPolicy
	pool     *channelpool.Pool
	conn     *amqp.Connection

	handlers   map[string]handlerFunc
	handlersMu sync.RWMutex

	now func() time.Time
}

// NewWorker connects to the broker and prepares a worker for the queue named
// in deps. Register handlers on the returned Worker before calling Run.
func NewWorker(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps WorkerDependencies) (*Worker, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if deps.Queue == "" {
		return nil, errspkg.ErrQueueRequired
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}

	conn, err := DialFactory(conf.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	w := newWorker(conf, log, deps, channelpool.New(conf.PoolSize(), poolFactory(conn)))
	w.conn = conn

	serveMetrics(conf, log)
	return w, nil
}

// newWorker wires the dispatch machinery without touching the broker.
func newWorker(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps WorkerDependencies, pool *channelpool.Pool) *Worker {
	classify := deps.Classifier
	if classify == nil {
		classify = defaultErrorClassifier
	}
	return &Worker{
		conf:     conf,
		logger:   log,
		queue:    deps.Queue,
		scopes:   deps.Scopes,
		classify: classify,
		policy:   deps.Policy,
		pool:     pool,
		handlers: make(map[string]handlerFunc),
		now:      time.Now,
	}
}

// Run declares the queue, starts the configured number of competing
// consumers, and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	instances := w.conf.Instances()

	var wg sync.WaitGroup
	for i := 0; i < instances; i++ {
		ch, err := w.conn.Channel()
		if err != nil {
			return fmt.Errorf("open consumer channel: %w", err)
		}
		if _, err := ch.QueueDeclare(w.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %q: %w", w.queue, err)
		}
		if err := ch.Qos(prefetchCount, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
		deliveries, err := ch.Consume(w.queue, instanceTag(w.queue, i), false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume queue %q: %w", w.queue, err)
		}

		wg.Add(1)
		go func(deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			w.consume(ctx, deliveries)
		}(deliveries)
	}

	w.logger.Info("Worker consuming", loggingpkg.LogFields{
		"queue":     w.queue,
		"instances": instances,
	})

	wg.Wait()
	return ctx.Err()
}

// Close releases broker resources.
func (w *Worker) Close() error {
	w.pool.Close()
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

func (w *Worker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.processDelivery(ctx, d)
		}
	}
}

// processDelivery runs the per-delivery state machine: validate the kind
// header, evaluate staleness, dispatch to the handler in a fresh scope, then
// ack/reply or reply/nack. Suppression is always decided before the ack.
func (w *Worker) processDelivery(ctx context.Context, d amqp.Delivery) {
	log := w.logger.With(loggingpkg.LogFields{
		"queue":          w.queue,
		"kind":           d.Type,
		"correlation_id": d.CorrelationId,
	})

	if d.Type == "" {
		// Malformed input, not a transient fault: the handler never runs and
		// the message is not requeued.
		_ = d.Ack(false)
		w.reply(ctx, d, envelope.Failure(envelope.KindValidation, "message kind header is required"))
		dispatchTotal.WithLabelValues(dispatchOutcomeMalformed).Inc()
		log.Info("Discarded delivery without kind header", nil)
		return
	}

	declared := declaredTimeout(d.Headers)
	expired := w.policy.Expired(d.Timestamp, declared, w.now())
	if expired && !executeIfTimeout(d.Headers) {
		// The caller already gave up and opted out of stale side effects.
		_ = d.Ack(false)
		dispatchTotal.WithLabelValues(dispatchOutcomeExpired).Inc()
		log.Info("Discarded expired request", loggingpkg.LogFields{
			"published_at": d.Timestamp,
			"limit":        w.policy.Limit(declared).String(),
		})
		return
	}
	// An expired request may still execute when the caller asked for eventual
	// completion, but nobody is waiting for its reply anymore.
	suppressReply := expired

	w.handlersMu.RLock()
	handler, ok := w.handlers[d.Type]
	w.handlersMu.RUnlock()
	if !ok {
		_ = d.Ack(false)
		if !suppressReply {
			w.reply(ctx, d, envelope.Failure(envelope.KindValidation, fmt.Sprintf("no handler registered for kind %q", d.Type)))
		}
		dispatchTotal.WithLabelValues(dispatchOutcomeMalformed).Inc()
		log.Info("Discarded delivery with unhandled kind", nil)
		return
	}

	resp, err := w.invoke(ctx, handler, d)
	if err != nil {
		kind := w.classify(err)
		if !suppressReply {
			w.reply(ctx, d, envelope.Failure(kind, err.Error()))
		}
		// Never requeued: redelivery of a poison message would fail the same
		// way forever. Broker-level recovery is the only retry path.
		_ = d.Nack(false, false)
		dispatchTotal.WithLabelValues(dispatchOutcomeError).Inc()
		log.Error("Handler failed", err, loggingpkg.LogFields{"error_kind": string(kind)})
		return
	}

	_ = d.Ack(false)
	if !suppressReply {
		w.reply(ctx, d, resp)
	}
	dispatchTotal.WithLabelValues(dispatchOutcomeOK).Inc()
}

// invoke runs the handler against a freshly opened scope, converting panics
// into errors so a misbehaving handler cannot take down the consumer loop.
func (w *Worker) invoke(ctx context.Context, handler handlerFunc, d amqp.Delivery) (resp envelope.Response, err error) {
	ctx, span := tracer.Start(ctx, "busrpc.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("messaging.message.type", d.Type)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			span.RecordError(err)
		}
	}()

	var scope Scope
	if w.scopes != nil {
		scope, err = w.scopes(ctx)
		if err != nil {
			return envelope.Response{}, fmt.Errorf("open scope: %w", err)
		}
		defer func() { _ = scope.Close() }()
	}

	timer := prometheus.NewTimer(handlerDuration.WithLabelValues(d.Type))
	defer timer.ObserveDuration()

	return handler(ctx, scope, d.Body)
}

// reply publishes the response to the request's embedded reply queue.
// Requests without a reply-to are fire-and-forget and produce none. Reply
// publish failures are logged, not surfaced: the caller's timeout covers a
// lost reply.
func (w *Worker) reply(ctx context.Context, d amqp.Delivery, resp envelope.Response) {
	if d.ReplyTo == "" {
		return
	}

	body, err := envelope.Encode(resp)
	if err != nil {
		w.logger.Error("Failed to encode reply", err, loggingpkg.LogFields{"correlation_id": d.CorrelationId})
		return
	}

	ch, err := w.pool.Borrow()
	if err != nil {
		w.logger.Error("Failed to borrow reply channel", err, loggingpkg.LogFields{"correlation_id": d.CorrelationId})
		return
	}
	err = ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   contentTypeJSON,
		CorrelationId: d.CorrelationId,
		Timestamp:     time.Now(),
		Body:          body,
	})
	w.pool.Return(ch)
	if err != nil {
		w.logger.Error("Failed to publish reply", err, loggingpkg.LogFields{
			"correlation_id": d.CorrelationId,
			"reply_to":       d.ReplyTo,
		})
	}
}
