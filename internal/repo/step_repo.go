package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
)

// StepRecord — строка таблицы step_results.
type StepRecord struct {
	RunID      uuid.UUID
	Path       string
	Step       string
	Kind       string
	Status     domain.RunStatus
	Error      string
	DurationMs int64
	Output     any
}

// StepRepo — репозиторий результатов шагов.
type StepRepo struct {
	db DB
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(db DB) *StepRepo {
	return &StepRepo{db: db}
}

// Insert сохраняет результат шага.
//
// Output сериализуется в jsonb; несериализуемый output пишется как NULL.
func (r *StepRepo) Insert(ctx context.Context, rec StepRecord) error {
	var output []byte
	if rec.Output != nil {
		if b, err := json.Marshal(rec.Output); err == nil {
			output = b
		}
	}

	query := `
		INSERT INTO step_results (run_id, path, step, kind, status, error, duration_ms, output)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		rec.RunID,
		rec.Path,
		rec.Step,
		rec.Kind,
		rec.Status,
		nullString(rec.Error),
		rec.DurationMs,
		output,
	)
	if err != nil {
		return fmt.Errorf("insert step result: %w", err)
	}
	return nil
}

// StepLog — хук, пишущий каждый выполненный шаг в step_results.
//
// Ошибка записи не прерывает сценарий.
type StepLog struct {
	Repo   *StepRepo
	RunID  uuid.UUID
	Logger *slog.Logger
}

// BeforeStep реализует engine.HookSet.
func (l *StepLog) BeforeStep(context.Context, *engine.Step, any) error {
	return nil
}

// AfterStep реализует engine.HookSet.
func (l *StepLog) AfterStep(ctx context.Context, s *engine.Step, _ any, res engine.StepResult) error {
	rec := StepRecord{
		RunID:      l.RunID,
		Path:       s.String(),
		Step:       s.Name(),
		Kind:       s.Kind().String(),
		Status:     domain.StatusOf(res.Success),
		DurationMs: res.ExecutionTime.Milliseconds(),
		Output:     res.Output,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := l.Repo.Insert(ctx, rec); err != nil {
		logger := l.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "failed to record step", "step", rec.Path, "error", err)
	}
	return nil
}
