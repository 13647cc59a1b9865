package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск сценария.
//
// Run создаётся когда:
// - Пользователь запускает сценарий через CLI
// - Scheduler запускает сценарий по расписанию
type Run struct {
	// ID — уникальный идентификатор запуска.
	ID uuid.UUID `json:"id"`

	// Scenario — имя сценария.
	Scenario string `json:"scenario"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// DryRun — изменяющие шаги не вызывали сеть.
	DryRun bool `json:"dry_run,omitempty"`

	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, если запуск ещё идёт.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если запуск завершился с FAILED.
	Error string `json:"error,omitempty"`
}

// NewRun создаёт запуск в статусе RUNNING.
func NewRun(scenario string) *Run {
	return &Run{
		ID:        uuid.New(),
		Scenario:  scenario,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если запуск ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если запуск завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Finish фиксирует итог запуска.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.FinishedAt = &now
	r.Status = StatusOf(err == nil)
	if err != nil {
		r.Error = err.Error()
	}
}
