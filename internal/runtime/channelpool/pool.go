// Package channelpool lends reusable AMQP publish channels. Channels are
// cheap but not free; pooling a small number of idle ones keeps concurrent
// publishers from opening a channel per publish without ever making them
// wait for one.
package channelpool

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the pool manages.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Factory opens a fresh channel, typically *amqp.Connection.Channel wrapped
// to return the Channel interface.
type Factory func() (Channel, error)

// Pool retains up to max idle channels. Borrow never blocks on pool
// occupancy: when no idle channel is available a new one is created, and
// Return discards it again once the pool is full.
type Pool struct {
	mu      sync.Mutex
	idle    []Channel
	max     int
	factory Factory
}

// New builds a pool that retains up to max idle channels.
func New(max int, factory Factory) *Pool {
	if max < 1 {
		max = 1
	}
	return &Pool{max: max, factory: factory}
}

// Borrow returns an idle healthy channel or opens a new one.
func (p *Pool) Borrow() (Channel, error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		ch := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !ch.IsClosed() {
			p.mu.Unlock()
			return ch, nil
		}
		// A channel that died while pooled is dropped, not repaired.
		_ = ch.Close()
	}
	p.mu.Unlock()

	return p.factory()
}

// Return hands a channel back. Unhealthy channels are discarded, and healthy
// ones beyond the idle cap are closed rather than retained.
func (p *Pool) Return(ch Channel) {
	if ch == nil {
		return
	}
	if ch.IsClosed() {
		return
	}

	p.mu.Lock()
	if len(p.idle) < p.max {
		p.idle = append(p.idle, ch)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	_ = ch.Close()
}

// Close drains and closes every idle channel. Borrowed channels are the
// borrower's responsibility.
func (p *Pool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, ch := range idle {
		_ = ch.Close()
	}
}

// IdleLen reports the current idle channel count.
func (p *Pool) IdleLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
