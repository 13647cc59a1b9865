package engine

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
)

// cronParser — парсер расписаний (пять полей, как в crontab).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New создаёт корень нового сценария.
//
// Agent может быть nil: тогда его задают через WithAgent
// или шаги работают только с контекстом.
func New(a agent.Agent) *Step {
	t := newTree(nil)
	id := t.add(node{kind: KindRoot, name: "root", parent: noParent, agent: a})
	return &Step{tree: t, id: id}
}

// Named задаёт имя сценария (для логов, метрик и расписания).
func (s *Step) Named(name string) *Step {
	s.tree.name = name
	return s
}

// ScenarioName возвращает имя сценария.
func (s *Step) ScenarioName() string {
	return s.tree.name
}

// Schedule задаёт cron-расписание сценария. Выполнением по расписанию
// занимается пакет scheduler.
func (s *Step) Schedule(expr string) *Step {
	if err := ValidateCronExpr(expr); err != nil {
		s.fail("schedule", err)
		return s
	}
	s.tree.cron = expr
	return s
}

// CronExpr возвращает расписание сценария или "".
func (s *Step) CronExpr() string {
	return s.tree.cron
}

// ValidateCronExpr проверяет cron-выражение.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expr, err)
	}
	return nil
}
