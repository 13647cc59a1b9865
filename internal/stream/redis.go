package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// DefaultRedisChannel — канал Pub/Sub по умолчанию.
const DefaultRedisChannel = "trotsky:stream"

// Redis — источник из Redis Pub/Sub. Сообщения — JSON domain.StreamMessage.
type Redis struct {
	Client  *redis.Client
	Channel string
	Logger  *slog.Logger
}

// NewRedis создаёт источник. Пустой channel означает DefaultRedisChannel.
func NewRedis(client *redis.Client, channel string) *Redis {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Redis{Client: client, Channel: channel, Logger: slog.Default()}
}

// NewRedisFromURL создаёт клиента по redis:// URL.
func NewRedisFromURL(rawURL, channel string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), channel), nil
}

// Subscribe подписывается на канал и пересылает сообщения до отмены ctx.
func (r *Redis) Subscribe(ctx context.Context, out chan<- domain.StreamMessage) error {
	pubsub := r.Client.Subscribe(ctx, r.Channel)
	defer pubsub.Close()

	// Ждём подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.Channel, err)
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg domain.StreamMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logger.Warn("skip malformed stream message", "channel", r.Channel, "error", err)
				continue
			}
			if err := send(ctx, out, msg); err != nil {
				return err
			}
		}
	}
}

// Publish публикует сообщение в канал.
func (r *Redis) Publish(ctx context.Context, msg domain.StreamMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal stream message: %w", err)
	}
	if err := r.Client.Publish(ctx, r.Channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.Channel, err)
	}
	return nil
}

// Close закрывает клиента.
func (r *Redis) Close() error {
	return r.Client.Close()
}
