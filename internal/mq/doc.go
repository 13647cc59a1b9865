// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений стрима и событий запусков
//   - consumer.go   — потребление очередей и Source для стрим-шагов
//   - events.go     — хуки, публикующие step.completed
//
// Типы сообщений:
//   - stream.message  — сообщение стрима (domain.StreamMessage)
//   - step.completed  — шаг сценария завершён
//   - run.completed   — запуск сценария завершён
//
// Exchanges:
//   - trotsky.stream  — сообщения стрима, routing key = коллекция
//   - trotsky.events  — события выполнения
//   - trotsky.dlq     — dead letter queue
//
// Пример: ретрансляция Jetstream в очередь и подписка на неё.
//
//	pub := mq.NewPublisher(conn, logger)
//	// ... pub.PublishStreamMessage(ctx, msg)
//
//	engine.New(a).WithSource(mq.NewSource(conn, logger)).StreamPosts().Like()
package mq
