package engine

import (
	"context"
	"slices"
	"time"
)

// StepResult — итог выполнения одного шага для AfterStep хуков.
type StepResult struct {
	Success       bool
	Err           error
	ExecutionTime time.Duration
	Output        any
}

// BeforeStepFunc вызывается перед apply шага.
type BeforeStepFunc func(ctx context.Context, s *Step, stepCtx any) error

// AfterStepFunc вызывается после apply шага, в том числе при ошибке.
type AfterStepFunc func(ctx context.Context, s *Step, stepCtx any, res StepResult) error

// Hooks — упорядоченные списки хуков сценария.
//
// Один экземпляр читают все шаги дерева, форк получает копию.
type Hooks struct {
	before []BeforeStepFunc
	after  []AfterStepFunc
}

// clone возвращает независимую копию списков.
func (h *Hooks) clone() *Hooks {
	return &Hooks{
		before: slices.Clone(h.before),
		after:  slices.Clone(h.after),
	}
}

// runBefore вызывает before-хуки по порядку, первая ошибка прерывает.
func (h *Hooks) runBefore(ctx context.Context, s *Step, stepCtx any) error {
	for _, fn := range h.before {
		if err := fn(ctx, s, stepCtx); err != nil {
			return err
		}
	}
	return nil
}

// runAfter вызывает after-хуки по порядку, первая ошибка прерывает.
func (h *Hooks) runAfter(ctx context.Context, s *Step, stepCtx any, res StepResult) error {
	for _, fn := range h.after {
		if err := fn(ctx, s, stepCtx, res); err != nil {
			return err
		}
	}
	return nil
}

// HookSet — набор хуков, который можно подключить одним вызовом.
type HookSet interface {
	BeforeStep(ctx context.Context, s *Step, stepCtx any) error
	AfterStep(ctx context.Context, s *Step, stepCtx any, res StepResult) error
}

// BeforeStep регистрирует хук перед каждым шагом.
func (s *Step) BeforeStep(fn BeforeStepFunc) *Step {
	s.tree.hooks.before = append(s.tree.hooks.before, fn)
	return s
}

// AfterStep регистрирует хук после каждого шага.
func (s *Step) AfterStep(fn AfterStepFunc) *Step {
	s.tree.hooks.after = append(s.tree.hooks.after, fn)
	return s
}

// Use подключает набор хуков.
func (s *Step) Use(sets ...HookSet) *Step {
	for _, set := range sets {
		s.BeforeStep(set.BeforeStep)
		s.AfterStep(set.AfterStep)
	}
	return s
}

// ClearHooks удаляет все хуки сценария.
func (s *Step) ClearHooks() *Step {
	s.tree.hooks.before = nil
	s.tree.hooks.after = nil
	return s
}
