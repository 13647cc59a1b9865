package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/steps"
)

// ConfigQueueSize — размер очереди сообщений стрима.
const ConfigQueueSize = "queue_size"

// DefaultQueueSize — размер очереди по умолчанию.
const DefaultQueueSize = 64

// Source — источник сообщений стрима (Jetstream, Redis, AMQP, канал в тестах).
type Source interface {
	// Subscribe пишет сообщения в out, пока не отменён ctx или не случилась ошибка.
	// Отправка в out должна учитывать ctx.Done(). Канал out закрывает движок.
	Subscribe(ctx context.Context, out chan<- domain.StreamMessage) error
}

// SourceFunc — функция, реализующая Source.
type SourceFunc func(ctx context.Context, out chan<- domain.StreamMessage) error

// Subscribe вызывает функцию.
func (f SourceFunc) Subscribe(ctx context.Context, out chan<- domain.StreamMessage) error {
	return f(ctx, out)
}

// applyStream подписывается на источник и выполняет детей для каждого подходящего сообщения.
//
// Сообщения обрабатываются по одному в порядке поступления. Первая ошибка
// обработки останавливает подписку. Стрим завершается, когда источник
// вернул управление, ctx отменён или набрано take сообщений.
func (t *Tree) applyStream(ctx context.Context, id int) error {
	spec := t.nodes[id].stream
	if spec == nil {
		return fmt.Errorf("%w: %s", ErrNotImplemented, t.nodes[id].name)
	}
	src := t.sourceOf(id)
	if src == nil {
		return fmt.Errorf("%w: %s", ErrNoSource, t.nodes[id].name)
	}

	skip, take, err := t.window(ctx, id)
	if err != nil {
		return err
	}
	if take == 0 {
		return nil
	}

	size := steps.GetConfigInt(t.mergedConfig(id), ConfigQueueSize)
	if size <= 0 {
		size = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan domain.StreamMessage, size)
	errc := make(chan error, 1)
	go func() {
		defer close(queue)
		errc <- src.Subscribe(ctx, queue)
	}()

	matched, handled := 0, 0
	for msg := range queue {
		if !spec.Match(msg) {
			continue
		}
		matched++
		if matched <= skip {
			continue
		}

		if err := t.handleMessage(ctx, id, spec.Project(msg)); err != nil {
			cancel()
			return err
		}

		handled++
		if take > 0 && handled >= take {
			cancel()
			return nil
		}
	}

	if err := <-errc; err != nil {
		return err
	}
	return ctx.Err()
}

// handleMessage выполняет копию каждого ребёнка стрима с выходом, равным событию.
func (t *Tree) handleMessage(ctx context.Context, id int, event any) error {
	for _, child := range slices.Clone(t.nodes[id].children) {
		fork := t.fork(child, true)
		fork.SetOutput(event)
		fork.node().ctx = event
		if err := fork.tree.applyAll(ctx, fork.id); err != nil {
			return err
		}
	}
	return nil
}
