package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoChannel — соединение закрыто или ещё не восстановлено.
var ErrNoChannel = errors.New("amqp channel not available")

// Backoff — задержки между попытками переподключения.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff: 1s, 2s, 4s ... до 30s.
var DefaultBackoff = Backoff{Min: time.Second, Max: 30 * time.Second}

// Next возвращает задержку после d.
func (b Backoff) Next(d time.Duration) time.Duration {
	if d < b.Min {
		return b.Min
	}
	return min(d*2, b.Max)
}

// Connection — AMQP соединение с одним каналом и автоматическим reconnect.
//
// Реализует Sender и Broker. После переподключения канал новый,
// поэтому потребители пересоздают подписку по ReconnectNotify.
type Connection struct {
	url     string
	logger  *slog.Logger
	backoff Backoff

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	done      chan struct{}
	closeOnce sync.Once

	reconnected chan struct{}
}

// NewConnection подключается к брокеру и запускает слежение за соединением.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		url:         url,
		logger:      logger.With("component", "amqp"),
		backoff:     DefaultBackoff,
		done:        make(chan struct{}),
		reconnected: make(chan struct{}, 1),
	}

	if err := c.dial(); err != nil {
		return nil, err
	}
	go c.watch()
	return c, nil
}

func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, ch
	c.mu.Unlock()

	c.logger.Info("amqp connected")
	return nil
}

// watch ждёт разрыва соединения и восстанавливает его до Close.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		closed := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.done:
			return
		case err := <-closed:
			c.logger.Warn("amqp connection lost", "error", err)
		}

		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()

		if !c.redial() {
			return
		}
	}
}

// redial повторяет dial с backoff. false — соединение закрыто через Close.
func (c *Connection) redial() bool {
	delay := c.backoff.Next(0)
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		if err := c.dial(); err != nil {
			c.logger.Warn("amqp reconnect failed", "error", err, "retry_in", delay)
			delay = c.backoff.Next(delay)
			continue
		}

		select {
		case c.reconnected <- struct{}{}:
		default:
		}
		return true
	}
}

// ReconnectNotify сигналит после каждого успешного переподключения.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnected
}

// Close закрывает канал и соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.channel != nil {
			err = errors.Join(err, c.channel.Close())
		}
		if c.conn != nil && !c.conn.IsClosed() {
			err = errors.Join(err, c.conn.Close())
		}
		c.channel = nil
	})
	return err
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return ErrNoChannel
	}
	return fn(ch)
}

// Send публикует сообщение через текущий канал.
func (c *Connection) Send(ctx context.Context, exchange Exchange, key RoutingKey, msg amqp.Publishing) error {
	return c.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx, string(exchange), string(key), false, false, msg)
	})
}

// Deliveries подписывается на очередь с ручным ack и ограничением prefetch.
func (c *Connection) Deliveries(queue Queue, prefetch int) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery
	err := c.WithChannel(context.Background(), func(ch *amqp.Channel) error {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		d, err := ch.Consume(string(queue), "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queue, err)
		}
		deliveries = d
		return nil
	})
	return deliveries, err
}
