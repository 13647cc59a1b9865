// Package scheduler запускает сценарии по расписанию.
//
// Scheduler периодически проверяет расписания с истекшим next_due_at,
// строит свежее дерево сценария и выполняет его.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, process, Run)
//   - cron.go      — вычисление следующего времени по cron или интервалу
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Runner: runner, // опционально: запись в БД, метрики
//	    Logger: logger,
//	})
//	_ = sched.AddScenario(func() (*engine.Step, error) {
//	    return scenario.Build(doc, agent)
//	})
//
//	// Блокируется до отмены ctx
//	sched.Run(ctx)
package scheduler
