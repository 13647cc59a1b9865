package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStream        MessageType = "stream.message"
	MessageTypeStepCompleted MessageType = "step.completed"
	MessageTypeRunCompleted  MessageType = "run.completed"
)

// Sender отправляет AMQP сообщение. Реализуется Connection.
type Sender interface {
	Send(ctx context.Context, exchange Exchange, key RoutingKey, msg amqp.Publishing) error
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	sender Sender
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(sender Sender, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		sender: sender,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// StepCompletedPayload — payload для события о выполненном шаге.
type StepCompletedPayload struct {
	Scenario   string `json:"scenario,omitempty"`
	Step       string `json:"step"`
	Path       string `json:"path"`
	Status     string `json:"status"` // SUCCEEDED или FAILED
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// RunCompletedPayload — payload для события о завершённом запуске сценария.
type RunCompletedPayload struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.sender.Send(ctx, exchange, routingKey, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishStreamMessage публикует сообщение стрима. Routing key — коллекция записи.
// Потребитель: Source.
func (p *Publisher) PublishStreamMessage(ctx context.Context, m domain.StreamMessage) error {
	key := RoutingKey(m.Kind)
	if m.Commit != nil {
		key = RoutingKey(m.Commit.Collection)
	}
	return p.Publish(ctx, ExchangeStream, key, NewMessage(MessageTypeStream, m))
}

// PublishStepCompleted публикует событие о выполненном шаге.
func (p *Publisher) PublishStepCompleted(ctx context.Context, payload StepCompletedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyStepCompleted, NewMessage(MessageTypeStepCompleted, payload))
}

// PublishRunCompleted публикует событие о завершённом запуске.
func (p *Publisher) PublishRunCompleted(ctx context.Context, payload RunCompletedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyRunCompleted, NewMessage(MessageTypeRunCompleted, payload))
}
