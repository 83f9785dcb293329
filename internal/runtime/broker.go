package runtime

import (
	"fmt"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/kvale/busrpc/internal/runtime/channelpool"
)

var tracer = otel.Tracer("github.com/kvale/busrpc")

// DialFactory allows overriding the broker connection creation for testing.
var DialFactory = func(url string) (*amqp.Connection, error) {
	return amqp.Dial(url)
}

// poolFactory adapts a live connection into the channel pool's factory.
func poolFactory(conn *amqp.Connection) channelpool.Factory {
	return func() (channelpool.Channel, error) {
		ch, err := conn.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

// instanceTag derives a broker-visible consumer identity from the host
// process and the consumer instance index.
func instanceTag(queue string, instance int) string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%s-%d-%d", queue, host, os.Getpid(), instance)
}
