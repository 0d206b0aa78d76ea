// Package broker publishes order events to RabbitMQ for downstream consumers
// such as a kitchen display or a notification worker.
package broker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ORDERS_EXCHANGE = "orders_topic"
	PUBLISH_TIMEOUT = 5 * time.Second
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

func Connect(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		ORDERS_EXCHANGE, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", ORDERS_EXCHANGE, err)
	}

	log.Println("broker: connected to RabbitMQ")
	return &RabbitMQ{Conn: conn, Channel: channel}, nil
}

func (r *RabbitMQ) Close() error {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}

// Healthy reports whether the connection is still open.
func (r *RabbitMQ) Healthy() bool {
	return r.Conn != nil && !r.Conn.IsClosed()
}

// PublishOrder sends a persistent JSON message to the orders exchange.
func (r *RabbitMQ) PublishOrder(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, PUBLISH_TIMEOUT)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.Channel.PublishWithContext(ctx,
		ORDERS_EXCHANGE, // exchange
		routingKey,      // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
}
