package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// AMQPClient shares invalidations between API instances over a fanout
// exchange. Every instance consumes from its own exclusive queue, so each
// one sees every message.
type AMQPClient struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

// NewAMQPClient dials url and declares the exchange and this instance's
// queue.
func NewAMQPClient(url, exchangeName string) (*AMQPClient, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &AMQPClient{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *AMQPClient) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Server-named, exclusive and auto-deleted: the queue lives as long as
	// this instance does.
	q, err := c.channel.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	c.queueName = q.Name

	if err := c.channel.QueueBind(q.Name, "", c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish implements Publisher.
func (c *AMQPClient) Publish(ctx context.Context, inv Invalidation) error {
	body, err := inv.Encode()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			MessageId:   inv.ID.String(),
			Type:        string(inv.Kind),
			Timestamp:   inv.OccurredAt,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "Published invalidation",
		"id", inv.ID,
		"kind", inv.Kind,
		"exchange", c.exchangeName)
	return nil
}

// Consume delivers every message on this instance's queue to handler until
// ctx is cancelled. A message is acked once handler returns; malformed
// messages are dropped, handler failures are requeued.
func (c *AMQPClient) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		true,        // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming invalidations", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping invalidation consumer", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			inv, err := Decode(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to decode invalidation", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, inv); err != nil {
				slog.ErrorContext(ctx, "Failed to handle invalidation",
					"error", err,
					"id", inv.ID,
					"kind", inv.Kind)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

// Close releases the channel and the connection.
func (c *AMQPClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Backoff returns the wait before reconnect attempt n: 1s doubling up to 30s.
func Backoff(attempt int) time.Duration {
	const maxWait = 30 * time.Second
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxWait
	}
	return min(time.Second<<attempt, maxWait)
}
