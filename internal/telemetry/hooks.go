package telemetry

import (
	"context"
	"log/slog"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
)

// LoggingHooks пишет начало и конец каждого шага в лог.
type LoggingHooks struct {
	Logger *slog.Logger
}

// NewLoggingHooks создаёт LoggingHooks. nil означает slog.Default().
func NewLoggingHooks(logger *slog.Logger) *LoggingHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHooks{Logger: logger}
}

// logger — логгер из контекста запуска (с run_id), иначе h.Logger.
func (h *LoggingHooks) logger(ctx context.Context, s *engine.Step) *slog.Logger {
	if logger, ok := fromContext(ctx); ok {
		return WithStep(logger, s)
	}
	return WithStep(h.Logger, s)
}

// BeforeStep реализует engine.HookSet.
func (h *LoggingHooks) BeforeStep(ctx context.Context, s *engine.Step, _ any) error {
	h.logger(ctx, s).DebugContext(ctx, "step started")
	return nil
}

// AfterStep реализует engine.HookSet.
func (h *LoggingHooks) AfterStep(ctx context.Context, s *engine.Step, _ any, res engine.StepResult) error {
	logger := h.logger(ctx, s)
	if !res.Success {
		logger.ErrorContext(ctx, "step failed",
			"error", res.Err,
			"kind", domain.KindOf(res.Err),
			"duration_ms", res.ExecutionTime.Milliseconds(),
		)
		return nil
	}
	logger.InfoContext(ctx, "step completed", "duration_ms", res.ExecutionTime.Milliseconds())
	return nil
}

// MetricsHooks считает шаги и их длительность.
type MetricsHooks struct {
	Metrics *Metrics
}

// BeforeStep реализует engine.HookSet.
func (h *MetricsHooks) BeforeStep(context.Context, *engine.Step, any) error {
	return nil
}

// AfterStep реализует engine.HookSet.
func (h *MetricsHooks) AfterStep(_ context.Context, s *engine.Step, _ any, res engine.StepResult) error {
	h.Metrics.StepsTotal.WithLabelValues(s.Name(), statusLabel(res.Success)).Inc()
	h.Metrics.StepDuration.WithLabelValues(s.Name()).Observe(res.ExecutionTime.Seconds())
	return nil
}

// Instrument подключает к сценарию логирование и метрики.
// m может быть nil — тогда только логи.
func Instrument(root *engine.Step, logger *slog.Logger, m *Metrics) *engine.Step {
	root.Use(NewLoggingHooks(logger))
	if m != nil {
		root.Use(&MetricsHooks{Metrics: m})
	}
	return root
}

// CountingSource считает сообщения источника по коллекциям.
func CountingSource(src engine.Source, m *Metrics) engine.Source {
	return engine.SourceFunc(func(ctx context.Context, out chan<- domain.StreamMessage) error {
		counted := make(chan domain.StreamMessage)
		errc := make(chan error, 1)
		go func() {
			defer close(counted)
			errc <- src.Subscribe(ctx, counted)
		}()

		for msg := range counted {
			collection := msg.Kind
			if msg.Commit != nil {
				collection = msg.Commit.Collection
			}
			m.StreamMessages.WithLabelValues(collection).Inc()

			select {
			case out <- msg:
			case <-ctx.Done():
				// Дочитываем, чтобы источник не завис на отправке
				for range counted {
				}
				return ctx.Err()
			}
		}
		return <-errc
	})
}
