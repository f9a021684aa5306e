package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"littlelemon/internal/logger"
)

// Topology names.
const (
	OrdersExchange   = "orders_topic"
	OrderEventsQueue = "order_events_queue"
	OrderEventsKey   = "order.*"
)

const (
	maxConnectAttempts = 5
	dialTimeout        = 5 * time.Second
	heartbeat          = 10 * time.Second
	eventTTL           = 24 * time.Hour
)

// ErrReconnecting is returned by TryReconnect while another reconnect is running.
var ErrReconnecting = errors.New("rabbitmq reconnect already in progress")

// Connection wraps RabbitMQ connection with reconnection logic.
// mu guards conn and channel and is never held across a dial or a retry wait.
type Connection struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	reconnecting atomic.Bool
	logger       *logger.Logger
	url          string
}

// New dials url, retrying with a growing delay, and declares the order event topology.
func New(ctx context.Context, url string, log *logger.Logger) (*Connection, error) {
	c := &Connection{
		logger: log,
		url:    url,
	}
	if err := c.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}
	return c, nil
}

func (c *Connection) connect(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if err = c.redial(); err == nil {
			return nil
		}
		if attempt == maxConnectAttempts {
			break
		}

		wait := time.Duration(attempt) * 2 * time.Second
		c.logger.Warn("rabbitmq_connection_failed",
			fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", wait), "", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxConnectAttempts, err)
}

// redial replaces a closed connection with a fresh one. An open connection is kept.
// The dial runs outside mu so readers of the current state never wait on the network.
func (c *Connection) redial() error {
	if !c.IsClosed() {
		return nil
	}

	conn, err := amqp091.DialConfig(c.url, amqp091.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp091.DefaultDial(dialTimeout),
	})
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		ch.Close()
		conn.Close()
		return nil
	}
	c.close()
	c.conn, c.channel = conn, ch
	return nil
}

// topologyDeclarer is the subset of *amqp091.Channel used to declare topology.
type topologyDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

// declareTopology creates the durable order events exchange and the audit queue bound to it.
func declareTopology(ch topologyDeclarer) error {
	if err := ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", OrdersExchange, err)
	}

	_, err := ch.QueueDeclare(OrderEventsQueue, true, false, false, false, amqp091.Table{
		"x-message-ttl": int64(eventTTL / time.Millisecond),
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", OrderEventsQueue, err)
	}

	if err := ch.QueueBind(OrderEventsQueue, OrderEventsKey, OrdersExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s with routing key %s: %w", OrderEventsQueue, OrderEventsKey, err)
	}
	return nil
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close()
}

func (c *Connection) close() error {
	var err error
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		err = c.conn.Close()
	}
	c.conn, c.channel = nil, nil
	return err
}

func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect retries until the connection is back or ctx is done. Used by the consumer,
// which has nothing to do while the broker is away.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.reconnecting.Store(true)
	defer c.reconnecting.Store(false)
	return c.connect(ctx)
}

// TryReconnect makes a single dial attempt and returns ErrReconnecting at once if a
// reconnect is already running. Used on request paths that must not wait for the broker.
func (c *Connection) TryReconnect() error {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return ErrReconnecting
	}
	defer c.reconnecting.Store(false)
	return c.redial()
}
