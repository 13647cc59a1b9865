// Package stream содержит источники сообщений для шагов-стримов.
//
// Каждый источник реализует engine.Source:
//
//	Subscribe(ctx context.Context, out chan<- domain.StreamMessage) error
//
// Источники:
//   - jetstream.go — WebSocket подписка на Jetstream (gorilla/websocket)
//   - redis.go     — Redis Pub/Sub канал с JSON сообщениями
//   - chan.go      — Go канал (тесты и встраивание)
//
// AMQP источник живёт в пакете mq.
package stream
