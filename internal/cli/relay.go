package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pirhoo/trotsky-sub000/internal/config"
	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
	"github.com/pirhoo/trotsky-sub000/internal/stream"
)

// PublishFunc отправляет одно сообщение стрима.
type PublishFunc func(ctx context.Context, msg domain.StreamMessage) error

// Relay пересылает сообщения src в publish до завершения источника.
// Возвращает число пересланных сообщений.
func Relay(ctx context.Context, src engine.Source, publish PublishFunc) (int, error) {
	msgs := make(chan domain.StreamMessage, 64)
	errc := make(chan error, 1)
	go func() {
		defer close(msgs)
		errc <- src.Subscribe(ctx, msgs)
	}()

	var n int
	for msg := range msgs {
		if err := publish(ctx, msg); err != nil {
			// Дочитываем, чтобы источник не завис на отправке
			go func() {
				for range msgs {
				}
			}()
			return n, fmt.Errorf("relay message %s: %w", msg.URI(), err)
		}
		n++
	}
	if err := <-errc; err != nil {
		return n, err
	}
	return n, ctx.Err()
}

// NewRelayCmd создаёт команду `relay --to redis|amqp`.
//
// Читает Jetstream и публикует сообщения в Redis Pub/Sub или RabbitMQ,
// откуда их забирают `run --source redis|amqp`.
func NewRelayCmd(cfgFn func() (*config.Config, error), depsFn DepsFunc) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Forward Jetstream messages to Redis or RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			cfg, err := cfgFn()
			if err != nil {
				return err
			}
			deps, err := depsFn(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			var publish PublishFunc
			switch to {
			case SourceRedis:
				if cfg.RedisURL == "" {
					return errors.New("--to=redis requires REDIS_URL")
				}
				r, err := stream.NewRedisFromURL(cfg.RedisURL, "")
				if err != nil {
					return err
				}
				defer r.Close()
				publish = r.Publish
			case SourceAMQP:
				if deps.Events == nil {
					return errors.New("--to=amqp requires RABBITMQ_URL")
				}
				publish = deps.Events.PublishStreamMessage
			default:
				return fmt.Errorf("unknown relay target %q (redis, amqp)", to)
			}

			js := stream.NewJetstream(cfg.JetstreamURL, domain.CollectionPost, domain.CollectionFollow, domain.CollectionLike)
			js.Logger = deps.Logger

			n, err := Relay(ctx, js, publish)
			deps.Logger.Info("relay stopped", "messages", n)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&to, "to", SourceRedis, "Relay target: redis or amqp")
	return cmd
}
