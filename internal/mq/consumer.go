package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Handler — функция обработки сообщения.
// Возвращает error, если обработка не удалась (сообщение будет nack).
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение с методами ack/nack.
type Delivery struct {
	// Message — распарсенное сообщение.
	Message Message

	// Raw — сырое AMQP сообщение.
	Raw amqp.Delivery
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Broker выдаёт доставки из очереди. Реализуется Connection.
type Broker interface {
	Deliveries(queue Queue, prefetch int) (<-chan amqp.Delivery, error)
	ReconnectNotify() <-chan struct{}
}

// Consumer потребляет сообщения из очереди RabbitMQ.
type Consumer struct {
	broker   Broker
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(broker Broker, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		broker:   broker,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет сообщения до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.broker.Deliveries(c.queue, c.prefetch)
		if err != nil {
			c.logger.Error("failed to setup consume", "queue", c.queue, "error", err)
			// Ждём переподключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.broker.ReconnectNotify():
				c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
				continue
			}
		}

		c.logger.Info("consumer started", "queue", c.queue)

		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.broker.ReconnectNotify():
				continue
			}
		}
	}
}

// processDeliveries обрабатывает сообщения из канала.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректное сообщение — отправляем в DLQ
		_ = raw.Nack(false, false)
		return
	}

	delivery := &Delivery{
		Message: msg,
		Raw:     raw,
	}

	c.logger.Debug("received message",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	if err := c.handler(ctx, delivery); err != nil {
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		// Отмена — вернуть в очередь, остальное — в DLQ
		_ = raw.Nack(false, ctx.Err() != nil)
		return
	}

	_ = raw.Ack(false)
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload может быть уже распарсен как map или быть raw json
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}

// Source — источник стрима из очереди stream.messages.
//
// Реализует engine.Source: каждое сообщение типа stream.message
// отдаётся в стрим-шаг и подтверждается после передачи.
type Source struct {
	Broker   Broker
	Queue    Queue
	Prefetch int
	Logger   *slog.Logger
}

// NewSource создаёт источник для очереди stream.messages.
func NewSource(broker Broker, logger *slog.Logger) *Source {
	return &Source{Broker: broker, Queue: QueueStream, Prefetch: 16, Logger: logger}
}

// Subscribe потребляет очередь до отмены ctx.
func (s *Source) Subscribe(ctx context.Context, out chan<- domain.StreamMessage) error {
	consumer := NewConsumer(s.Broker, s.Logger, ConsumerConfig{
		Queue:    s.Queue,
		Handler:  s.handler(out),
		Prefetch: s.Prefetch,
	})
	err := consumer.Start(ctx)
	if ctx.Err() != nil {
		// Остановка стрим-шага — штатное завершение
		return nil
	}
	return err
}

// handler передаёт сообщение стрима в out.
func (s *Source) handler(out chan<- domain.StreamMessage) Handler {
	return func(ctx context.Context, d *Delivery) error {
		if d.Message.Type != MessageTypeStream {
			return fmt.Errorf("unexpected message type %q", d.Message.Type)
		}
		m, err := ParsePayload[domain.StreamMessage](&d.Message)
		if err != nil {
			return err
		}
		select {
		case out <- m:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
