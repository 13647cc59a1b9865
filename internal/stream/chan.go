package stream

import (
	"context"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Chan — источник из Go канала. Завершается, когда канал закрыт.
type Chan <-chan domain.StreamMessage

// Subscribe пересылает сообщения канала в out.
func (c Chan) Subscribe(ctx context.Context, out chan<- domain.StreamMessage) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c:
			if !ok {
				return nil
			}
			if err := send(ctx, out, msg); err != nil {
				return err
			}
		}
	}
}

// send отправляет сообщение с учётом отмены.
func send(ctx context.Context, out chan<- domain.StreamMessage, msg domain.StreamMessage) error {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
