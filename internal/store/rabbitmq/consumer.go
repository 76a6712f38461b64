package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/suPer8Hu/nutribot/internal/logging"
	"github.com/suPer8Hu/nutribot/internal/task"
)

type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
	log      *zap.Logger
}

// NewConsumer declares the topology and limits unacked deliveries to
// prefetch, which should match the worker concurrency.
func NewConsumer(url, queue string, prefetch int, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := Declare(ch, NewTopology(queue)); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, prefetch: prefetch, log: logging.OrNop(log)}, nil
}

// Deliveries starts consuming with manual acks. The returned channel
// closes when ctx ends or the broker connection drops.
func (c *Consumer) Deliveries(ctx context.Context) (<-chan task.Delivery, error) {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	out := make(chan task.Delivery, c.prefetch)
	go func() {
		defer close(out)
		for d := range msgs {
			select {
			case out <- delivery{d}:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			}
		}
		c.log.Info("delivery channel closed")
	}()
	return out, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

type delivery struct {
	d amqp.Delivery
}

func (d delivery) Body() []byte { return d.d.Body }
func (d delivery) Ack() error   { return d.d.Ack(false) }
func (d delivery) Nack() error  { return d.d.Nack(false, false) }
