package mq

import (
	"context"
	"log/slog"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
)

// EventHooks публикует step.completed после каждого шага.
//
// Ошибка публикации не прерывает сценарий, только пишется в лог.
type EventHooks struct {
	Publisher *Publisher
	Logger    *slog.Logger
}

// BeforeStep реализует engine.HookSet.
func (h *EventHooks) BeforeStep(context.Context, *engine.Step, any) error {
	return nil
}

// AfterStep реализует engine.HookSet.
func (h *EventHooks) AfterStep(ctx context.Context, s *engine.Step, _ any, res engine.StepResult) error {
	payload := StepCompletedPayload{
		Scenario:   s.ScenarioName(),
		Step:       s.Name(),
		Path:       s.String(),
		Status:     string(domain.StatusOf(res.Success)),
		DurationMs: res.ExecutionTime.Milliseconds(),
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}

	if err := h.Publisher.PublishStepCompleted(ctx, payload); err != nil {
		logger := h.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "failed to publish step event", "step", payload.Path, "error", err)
	}
	return nil
}

// PublishRun публикует run.completed для завершённого запуска.
func PublishRun(ctx context.Context, p *Publisher, run *domain.Run) error {
	return p.PublishRunCompleted(ctx, RunCompletedPayload{
		RunID:    run.ID.String(),
		Scenario: run.Scenario,
		Status:   string(run.Status),
		Error:    run.Error,
	})
}
