package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeStream — сообщения стрима, routing key = коллекция записи.
	ExchangeStream Exchange = "trotsky.stream"

	// ExchangeEvents — события выполнения сценариев.
	ExchangeEvents Exchange = "trotsky.events"

	ExchangeDLQ Exchange = "trotsky.dlq"
)

const (
	QueueStream    Queue = "stream.messages"
	QueueDLQStream Queue = "dlq.stream"
)

const (
	RoutingKeyAll           RoutingKey = "#"
	RoutingKeyStepCompleted RoutingKey = "step.completed"
	RoutingKeyRunCompleted  RoutingKey = "run.completed"
	RoutingKeyDLQStream     RoutingKey = "stream"
)

// ExchangeSpec описывает durable обменник.
type ExchangeSpec struct {
	Name Exchange
	Kind string // topic, direct, fanout
}

// QueueSpec описывает durable очередь.
type QueueSpec struct {
	Name Queue
	Args amqp.Table
}

// Binding привязывает очередь к обменнику.
type Binding struct {
	Queue    Queue
	Key      RoutingKey
	Exchange Exchange
}

// Topology — набор обменников, очередей и привязок.
type Topology struct {
	Exchanges []ExchangeSpec
	Queues    []QueueSpec
	Bindings  []Binding
}

// DefaultTopology — топология trotsky.
//
// События (trotsky.events) никто внутри не читает, поэтому очередей
// у обменника нет: подписчики создают свои.
func DefaultTopology() Topology {
	return Topology{
		Exchanges: []ExchangeSpec{
			{ExchangeStream, amqp.ExchangeTopic},
			{ExchangeEvents, amqp.ExchangeTopic},
			{ExchangeDLQ, amqp.ExchangeDirect},
		},
		Queues: []QueueSpec{
			// Неразобранные сообщения уходят в DLQ
			{QueueStream, amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQStream),
			}},
			{QueueDLQStream, nil},
		},
		Bindings: []Binding{
			{QueueStream, RoutingKeyAll, ExchangeStream},
			{QueueDLQStream, RoutingKeyDLQStream, ExchangeDLQ},
		},
	}
}

// Declarer — часть *amqp.Channel, нужная для объявления топологии.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare объявляет обменники, затем очереди, затем привязки.
func (t Topology) Declare(ch Declarer) error {
	for _, ex := range t.Exchanges {
		if err := ch.ExchangeDeclare(string(ex.Name), ex.Kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.Name, err)
		}
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(string(q.Name), true, false, false, false, q.Args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.Name, err)
		}
	}
	for _, b := range t.Bindings {
		if err := ch.QueueBind(string(b.Queue), string(b.Key), string(b.Exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.Queue, b.Exchange, err)
		}
	}
	return nil
}

// SetupTopology объявляет DefaultTopology на соединении.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return DefaultTopology().Declare(ch)
	})
}
