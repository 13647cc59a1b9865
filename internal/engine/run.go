package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pirhoo/trotsky-sub000/internal/steps"
)

// Run выполняет сценарий целиком, начиная с корня.
//
// Вызов на любом шаге цепочки запускает весь сценарий. Ошибки построения
// возвращаются до выполнения первого шага. Возвращает корень.
func (s *Step) Run(ctx context.Context) (*Step, error) {
	root := s.End()
	if err := s.Err(); err != nil {
		return root, err
	}
	return root, s.tree.applyAll(ctx, root.id)
}

// applyAll выполняет детей узла id в глубину.
//
// Ложный When останавливает всех следующих соседей. Дети списков и
// стримов выполняются в их apply, поэтому сюда не рекурсируем.
func (t *Tree) applyAll(ctx context.Context, id int) error {
	for _, child := range slices.Clone(t.nodes[id].children) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", steps.ErrStepCancelled, err)
		}

		t.dispatch(id, child)
		if err := t.applyStep(ctx, child); err != nil {
			return err
		}

		switch t.nodes[child].kind {
		case KindEntry, KindList, KindStream:
			continue
		case KindWhen:
			if ok, _ := t.nodes[child].output.(bool); !ok {
				return nil
			}
		}

		if err := t.applyAll(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// applyStep выполняет один узел с хуками.
//
// AfterStep вызывается и при ошибке apply. Ошибка хука объединяется с ошибкой шага.
func (t *Tree) applyStep(ctx context.Context, id int) error {
	s := &Step{tree: t, id: id}
	stepCtx := t.contextOf(id)

	if err := t.hooks.runBefore(ctx, s, stepCtx); err != nil {
		return err
	}

	start := time.Now()
	err := t.apply(ctx, id)
	res := StepResult{
		Success:       err == nil,
		Err:           err,
		ExecutionTime: time.Since(start),
		Output:        t.nodes[id].output,
	}

	if hookErr := t.hooks.runAfter(ctx, s, stepCtx, res); hookErr != nil {
		return errors.Join(err, hookErr)
	}
	return err
}

// apply выполняет узел по его варианту.
func (t *Tree) apply(ctx context.Context, id int) error {
	n := t.nodes[id]
	switch n.kind {
	case KindRoot, KindEntry:
		return nil

	case KindLeaf:
		if n.verb == nil {
			return fmt.Errorf("%w: %s", ErrNotImplemented, n.name)
		}
		req, err := t.request(ctx, id)
		if err != nil {
			return err
		}
		resp, err := n.verb.Execute(ctx, req)
		if err != nil {
			return err
		}
		t.nodes[id].output = resp.Output
		return nil

	case KindTap:
		if n.tap == nil {
			return fmt.Errorf("%w: %s", ErrNotImplemented, n.name)
		}
		return n.tap(ctx, &Step{tree: t, id: id})

	case KindWhen:
		ok, err := n.pred.Resolve(ctx, &Step{tree: t, id: id})
		if err != nil {
			return err
		}
		t.nodes[id].output = ok
		return nil

	case KindList:
		return t.applyList(ctx, id)

	case KindStream:
		return t.applyStream(ctx, id)

	default:
		return fmt.Errorf("%w: %s", ErrNotImplemented, n.kind)
	}
}

// request собирает запрос для глагола: аргументы вычисляются на момент выполнения.
func (t *Tree) request(ctx context.Context, id int) (*steps.Request, error) {
	s := &Step{tree: t, id: id}
	n := t.nodes[id]

	args := make(map[string]any, len(n.args))
	for key, r := range n.args {
		v, err := r.Resolve(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("%s: resolve %s: %w", n.name, key, err)
		}
		args[key] = v
	}

	return steps.NewRequest(n.name, t.agentOf(id), t.contextOf(id), t.mergedConfig(id), args), nil
}
