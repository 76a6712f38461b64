// Package rabbitmq carries task records between the bot and its workers.
package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/nutribot/internal/task"
)

const publishTimeout = 5 * time.Second

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// Topology names the main queue and its dead-letter queue.
type Topology struct {
	Main string
	DLQ  string
}

func NewTopology(queue string) Topology {
	return Topology{Main: queue, DLQ: queue + ".dlq"}
}

// mainArgs dead-letters rejected tasks to the DLQ. Nothing is retried.
func mainArgs(t Topology) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.DLQ,
	}
}

// Declare creates the DLQ and the main queue. Both the bot and the worker
// call it so either may start first.
func Declare(ch *amqp.Channel, t Topology) error {
	// DLQ
	if _, err := ch.QueueDeclare(
		t.DLQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(t.Main, true, false, false, false, mainArgs(t))
	return err
}

func NewPublisher(url, queue string) (*Publisher, error) {
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
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish sends rec as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, rec task.Record) error {
	msg, err := Encode(rec)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		msg,
	)
}

// Encode builds the broker message for rec.
func Encode(rec task.Record) (amqp.Publishing, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return amqp.Publishing{}, err
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    rec.TaskID,
		Type:         rec.Type,
		Body:         body,
		Timestamp:    ts,
	}, nil
}
