package runtime

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kvale/busrpc/internal/runtime/channelpool"
	configpkg "github.com/kvale/busrpc/internal/runtime/config"
	loggingpkg "github.com/kvale/busrpc/internal/runtime/logging"
)

type publishedMessage struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

// fakePoolChannel records publishes and satisfies channelpool.Channel.
type fakePoolChannel struct {
	mu         sync.Mutex
	closed     bool
	publishErr error
	published  []publishedMessage
	notify     chan publishedMessage
}

func newFakePoolChannel() *fakePoolChannel {
	return &fakePoolChannel{notify: make(chan publishedMessage, 16)}
}

func (f *fakePoolChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	err := f.publishErr
	if err == nil {
		f.published = append(f.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.notify <- publishedMessage{exchange: exchange, key: key, msg: msg}
	return nil
}

func (f *fakePoolChannel) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePoolChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePoolChannel) publishedMessages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, len(f.published))
	copy(out, f.published)
	return out
}

func newFakePool(fc *fakePoolChannel) *channelpool.Pool {
	return channelpool.New(2, func() (channelpool.Channel, error) { return fc, nil })
}

// fakeAcknowledger records the terminal broker decision for one delivery.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = true
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return f.Nack(0, false, requeue)
}

type fakeScope struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeScope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func testCallerConfig() *configpkg.Config {
	return &configpkg.Config{
		BrokerURL:  "amqp://localhost:5672/",
		ReplyQueue: "edge.replies",
	}
}

func newTestCaller(conf *configpkg.Config) (*Caller, *fakePoolChannel, chan amqp.Delivery) {
	fc := newFakePoolChannel()
	replies := make(chan amqp.Delivery, 16)
	c := newCaller(conf, loggingpkg.NewNopServiceLogger(), newFakePool(fc), replies)
	return c, fc, replies
}

func newTestWorker(deps WorkerDependencies) (*Worker, *fakePoolChannel) {
	if deps.Queue == "" {
		deps.Queue = "orders"
	}
	fc := newFakePoolChannel()
	conf := &configpkg.Config{BrokerURL: "amqp://localhost:5672/"}
	w := newWorker(conf, loggingpkg.NewNopServiceLogger(), deps, newFakePool(fc))
	return w, fc
}

func newDelivery(ack *fakeAcknowledger, kind, replyTo, correlationID string, publishedAt time.Time, headers amqp.Table, body []byte) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger:  ack,
		Type:          kind,
		ReplyTo:       replyTo,
		CorrelationId: correlationID,
		Timestamp:     publishedAt,
		Headers:       headers,
		Body:          body,
	}
}
