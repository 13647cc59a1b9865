package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
)

// DefaultTickInterval — период проверки расписаний.
const DefaultTickInterval = time.Second

// Builder строит свежее дерево сценария для каждого запуска.
type Builder func() (*engine.Step, error)

// Runner выполняет один запуск. run уже создан в статусе RUNNING.
type Runner func(ctx context.Context, run *domain.Run, root *engine.Step) error

// Entry — расписание и сценарий, который оно запускает.
type Entry struct {
	Schedule domain.Schedule
	Build    Builder
}

// Scheduler запускает сценарии по расписанию.
//
// Сценарии выполняются последовательно внутри Tick, поэтому
// один и тот же сценарий не перекрывается сам с собой.
type Scheduler struct {
	mu      sync.Mutex
	entries []*Entry

	run      Runner
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
}

// Config — конфигурация Scheduler.
type Config struct {
	// Runner — исполнитель запуска. По умолчанию root.Run(ctx).
	Runner Runner
	Logger *slog.Logger

	// Now — источник времени (для тестов). По умолчанию time.Now.
	Now func() time.Time

	// Interval — период тика для Run (default: 1s).
	Interval time.Duration
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		run:      cfg.Runner,
		logger:   cfg.Logger,
		now:      cfg.Now,
		interval: cfg.Interval,
	}
	if s.run == nil {
		s.run = func(ctx context.Context, _ *domain.Run, root *engine.Step) error {
			_, err := root.Run(ctx)
			return err
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.interval <= 0 {
		s.interval = DefaultTickInterval
	}
	return s
}

// Add регистрирует расписание и вычисляет первое время запуска.
func (s *Scheduler) Add(sched domain.Schedule, build Builder) error {
	if build == nil {
		return fmt.Errorf("schedule %q: nil builder", sched.Name)
	}
	next, err := CalculateNextDue(&sched, s.now())
	if err != nil {
		return err
	}
	sched.NextDueAt = &next

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &Entry{Schedule: sched, Build: build})
	return nil
}

// AddScenario регистрирует сценарий с расписанием из engine.Step.Schedule.
// build вызывается один раз сразу, чтобы прочитать имя и cron.
func (s *Scheduler) AddScenario(build Builder) error {
	root, err := build()
	if err != nil {
		return err
	}
	if root.CronExpr() == "" {
		return fmt.Errorf("scenario %q has no schedule", root.ScenarioName())
	}
	return s.Add(domain.Schedule{
		Name:     root.ScenarioName(),
		CronExpr: root.CronExpr(),
		Enabled:  true,
	}, build)
}

// Entries возвращает копию зарегистрированных расписаний.
func (s *Scheduler) Entries() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Schedule, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Schedule)
	}
	return out
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due расписания (enabled, next_due_at <= now)
// 2. Для каждого строит сценарий и выполняет его
// 3. Обновляет next_due_at
//
// Ошибки одного расписания не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	s.mu.Lock()
	var due []*Entry
	for _, e := range s.entries {
		if e.Schedule.IsDue(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(due))

	var processed, failed int
	for _, e := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.process(ctx, e, now); err != nil {
			failed++
			s.logger.Error("scheduled run failed",
				"schedule_name", e.Schedule.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}
		processed++
	}

	s.logger.Info("scheduler tick completed",
		"due", len(due),
		"succeeded", processed,
		"failed", failed,
	)
	return nil
}

// process выполняет один запуск и сдвигает next_due_at.
// next_due_at сдвигается и при ошибке, иначе упавший сценарий
// перезапускался бы каждый тик. Следующий запуск считается от момента
// завершения: слоты, пропущенные за время долгого запуска, не догоняются.
func (s *Scheduler) process(ctx context.Context, e *Entry, now time.Time) error {
	run := domain.NewRun(e.Schedule.Name)

	var runErr error
	root, err := e.Build()
	if err != nil {
		runErr = fmt.Errorf("build scenario: %w", err)
	} else {
		runErr = s.run(ctx, run, root)
	}
	run.Finish(runErr)

	nextDue, err := CalculateNextDue(&e.Schedule, s.now())
	if err != nil {
		// Расписание некорректно — выключаем
		s.mu.Lock()
		e.Schedule.Enabled = false
		s.mu.Unlock()
		return errors.Join(runErr, fmt.Errorf("disable schedule: %w", err))
	}

	s.mu.Lock()
	e.Schedule.RecordRun(run.ID, now, nextDue)
	s.mu.Unlock()

	if runErr == nil {
		s.logger.Info("scheduled run completed",
			"run_id", run.ID,
			"schedule_name", e.Schedule.Name,
			"duration_ms", run.Duration().Milliseconds(),
			"next_due_at", nextDue,
		)
	}
	return runErr
}

// Run тикает до отмены ctx. Отмена — штатное завершение.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}
