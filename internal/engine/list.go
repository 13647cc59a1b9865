package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/pirhoo/trotsky-sub000/internal/steps"
)

// Skip задаёт, сколько первых элементов пропустить (по умолчанию 0).
func (s *Step) Skip(n any) *Step {
	if !s.iterable() {
		s.fail("skip", ErrNotIterable)
		return s
	}
	r, err := coerceInt(n)
	if err != nil {
		s.fail("skip", err)
		return s
	}
	s.node().skip = r
	return s
}

// Take ограничивает число элементов (по умолчанию без ограничения).
// Отрицательное значение — ошибка.
func (s *Step) Take(n any) *Step {
	if !s.iterable() {
		s.fail("take", ErrNotIterable)
		return s
	}
	r, err := coerceInt(n)
	if err != nil {
		s.fail("take", err)
		return s
	}
	if r.fn == nil && r.value < 0 {
		s.fail("take", fmt.Errorf("%w: take must not be negative, got %d", ErrInvalidArgument, r.value))
		return s
	}
	s.node().take = r
	return s
}

// Each добавляет шаг-заглушку для элементов списка и возвращает его.
//
// Шаги, добавленные к заглушке, выполняются для каждого элемента.
// Необязательный iterator вызывается для каждого элемента с изолированной
// копией заглушки, выход которой равен элементу.
func (s *Step) Each(iterator ...any) *Step {
	if !s.iterable() {
		s.fail("each", ErrNotIterable)
		return s
	}
	for _, it := range iterator {
		fn, err := coerceStepFunc(it)
		if err != nil {
			s.fail("each", err)
			continue
		}
		s.node().iterator = fn
	}
	return s.appendNode(node{kind: KindEntry, name: "each"})
}

// iterable возвращает true для списков и стримов.
func (s *Step) iterable() bool {
	k := s.Kind()
	return k == KindList || k == KindStream
}

// scope возвращает узел, к которому присоединяются новые шаги.
//
// У списка и стрима это последняя заглушка Each (создаётся при необходимости).
func (s *Step) scope() *Step {
	if !s.iterable() {
		return s
	}
	children := s.node().children
	for i := len(children) - 1; i >= 0; i-- {
		if s.tree.nodes[children[i]].kind == KindEntry {
			return &Step{tree: s.tree, id: children[i]}
		}
	}
	return s.appendNode(node{kind: KindEntry, name: "each"})
}

// window вычисляет skip и take узла.
func (t *Tree) window(ctx context.Context, id int) (int, int, error) {
	s := &Step{tree: t, id: id}
	n := t.nodes[id]

	skip, take := 0, steps.Unbounded
	if n.skip.IsSet() {
		v, err := n.skip.Resolve(ctx, s)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: resolve skip: %w", n.name, err)
		}
		skip = max(v, 0)
	}
	if n.take.IsSet() {
		v, err := n.take.Resolve(ctx, s)
		if err != nil {
			return 0, 0, fmt.Errorf("%s: resolve take: %w", n.name, err)
		}
		if v < 0 {
			return 0, 0, fmt.Errorf("%s: %w: take must not be negative, got %d", n.name, ErrInvalidArgument, v)
		}
		take = v
	}
	return skip, take, nil
}

// applyList загружает окно элементов и выполняет детей для каждого.
func (t *Tree) applyList(ctx context.Context, id int) error {
	pager := t.nodes[id].pager
	if pager == nil {
		return fmt.Errorf("%w: %s", ErrNotImplemented, t.nodes[id].name)
	}

	skip, take, err := t.window(ctx, id)
	if err != nil {
		return err
	}
	req, err := t.request(ctx, id)
	if err != nil {
		return err
	}

	items, err := steps.Paginate(ctx, pager.Field(), func(ctx context.Context, cursor string) (map[string]any, error) {
		return pager.FetchPage(ctx, req, cursor)
	}, skip, take)
	if err != nil {
		return err
	}
	t.nodes[id].output = items

	iterator := t.nodes[id].iterator
	for _, item := range items {
		for _, child := range slices.Clone(t.nodes[id].children) {
			if iterator != nil {
				fork := t.fork(child, false)
				fork.SetOutput(item)
				fork.node().ctx = item
				if err := iterator(ctx, fork); err != nil {
					return err
				}
			}

			t.nodes[child].ctx = item
			t.nodes[child].output = item
			if err := t.applyAll(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}
