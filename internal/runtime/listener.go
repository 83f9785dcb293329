package runtime

import (
	amqp "github.com/rabbitmq/amqp091-go"

	loggingpkg "github.com/kvale/busrpc/internal/runtime/logging"
)

// listen is the caller's single reply consumer. It is the sole writer that
// resolves pending entries from the reply side; correctness relies only on
// the pending store's atomic take, not on any additional locking.
func (c *Caller) listen(replies <-chan amqp.Delivery) {
	for d := range replies {
		c.resolve(d)
	}
	c.logger.Debug("Reply listener stopped", nil)
}

func (c *Caller) resolve(d amqp.Delivery) {
	id := d.CorrelationId
	if id == "" {
		repliesDroppedTotal.Inc()
		c.logger.Debug("Dropping reply without correlation id", nil)
		return
	}

	entry, ok := c.pending.take(id)
	if !ok {
		// Late reply after the caller gave up, or an id this instance never
		// issued. Both are expected under at-least-once delivery.
		repliesDroppedTotal.Inc()
		c.logger.Debug("Dropping reply with no pending request", loggingpkg.LogFields{
			"correlation_id": id,
		})
		return
	}

	// The slot is buffered and the take above was exclusive, so this send
	// cannot block.
	entry.slot <- d.Body
}
