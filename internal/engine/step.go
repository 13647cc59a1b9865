package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
)

// Step — ссылка на узел дерева сценария.
//
// Все fluent-методы работают через Step. Две ссылки на один узел
// равны, если совпадают дерево и индекс.
type Step struct {
	tree *Tree
	id   int
}

// StepFunc — пользовательский callback (Tap, итератор Each).
type StepFunc func(ctx context.Context, s *Step) error

// coerceStepFunc приводит допустимые формы callback к StepFunc.
func coerceStepFunc(fn any) (StepFunc, error) {
	switch f := fn.(type) {
	case nil:
		return nil, nil
	case StepFunc:
		return f, nil
	case func(context.Context, *Step) error:
		return f, nil
	case func(*Step) error:
		return func(_ context.Context, s *Step) error { return f(s) }, nil
	case func(*Step):
		return func(_ context.Context, s *Step) error {
			f(s)
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported callback %T", ErrInvalidArgument, fn)
	}
}

func (s *Step) node() *node {
	return &s.tree.nodes[s.id]
}

// ID возвращает индекс узла в дереве.
func (s *Step) ID() int {
	return s.id
}

// Kind возвращает вариант узла.
func (s *Step) Kind() NodeKind {
	return s.node().kind
}

// Name возвращает имя шага (тип глагола для листьев).
func (s *Step) Name() string {
	return s.node().name
}

// Is возвращает true, если обе ссылки указывают на один узел.
func (s *Step) Is(other *Step) bool {
	return other != nil && s.tree == other.tree && s.id == other.id
}

// IsRoot возвращает true для узла без родителя.
func (s *Step) IsRoot() bool {
	return s.node().parent == noParent
}

// Back возвращает родителя или nil для корня.
func (s *Step) Back() *Step {
	parent := s.node().parent
	if parent == noParent {
		return nil
	}
	return &Step{tree: s.tree, id: parent}
}

// End возвращает корень сценария.
func (s *Step) End() *Step {
	return &Step{tree: s.tree, id: s.tree.top(s.id)}
}

// Children возвращает дочерние шаги в порядке выполнения.
func (s *Step) Children() []*Step {
	ids := s.node().children
	out := make([]*Step, len(ids))
	for i, id := range ids {
		out[i] = &Step{tree: s.tree, id: id}
	}
	return out
}

// Flatten возвращает все шаги поддерева в pre-order, без самого шага.
func (s *Step) Flatten() []*Step {
	ids := s.tree.flatten(s.id)
	out := make([]*Step, len(ids))
	for i, id := range ids {
		out[i] = &Step{tree: s.tree, id: id}
	}
	return out
}

// Err возвращает ошибки построения, накопленные деревом.
func (s *Step) Err() error {
	return errors.Join(s.tree.errs...)
}

// fail записывает ошибку построения. Run вернёт её без выполнения шагов.
func (s *Step) fail(message string, err error) {
	s.tree.errs = append(s.tree.errs, buildError(s.Name(), message, err))
}

// appendNode добавляет узел последним ребёнком и возвращает ссылку на него.
func (s *Step) appendNode(n node) *Step {
	n.parent = noParent
	id := s.tree.add(n)
	s.tree.attach(s.id, id)
	return &Step{tree: s.tree, id: id}
}

// Push делает переданные шаги последними детьми.
//
// Шаг того же дерева переносится, шаг другого дерева копируется
// вместе с поддеревом.
func (s *Step) Push(steps ...*Step) *Step {
	for _, st := range steps {
		if st == nil {
			continue
		}
		if st.tree != s.tree {
			id := s.tree.copyFrom(st.tree, st.id, true)
			s.tree.attach(s.id, id)
			continue
		}
		if s.tree.isAncestor(st.id, s.id) {
			s.fail("push", fmt.Errorf("%w: %s", ErrCyclicPush, st.Name()))
			continue
		}
		s.tree.detach(st.id)
		s.tree.attach(s.id, st.id)
	}
	return s
}

// Slice удаляет ребёнка по ссылке или по индексу. Неизвестный ребёнок игнорируется.
func (s *Step) Slice(v any) *Step {
	children := s.node().children
	switch x := v.(type) {
	case *Step:
		if x != nil && x.tree == s.tree && x.node().parent == s.id {
			s.tree.detach(x.id)
		}
	case int:
		if x >= 0 && x < len(children) {
			s.tree.detach(children[x])
		}
	}
	return s
}

// Clear удаляет всех детей.
func (s *Step) Clear() *Step {
	for _, id := range s.node().children {
		s.tree.nodes[id].parent = noParent
	}
	s.node().children = nil
	return s
}

// Clone возвращает независимую копию шага с поддеревом.
//
// Клон корня — новый сценарий со своими списками хуков.
// Клон другого шага ссылается на того же родителя, но не входит в его детей.
func (s *Step) Clone() *Step {
	if s.IsRoot() {
		t := newTree(s.tree.hooks.clone())
		t.name, t.cron = s.tree.name, s.tree.cron
		id := t.copyFrom(s.tree, s.id, true)
		return &Step{tree: t, id: id}
	}
	id := s.tree.copyFrom(s.tree, s.id, true)
	s.tree.nodes[id].parent = s.node().parent
	return &Step{tree: s.tree, id: id}
}

// Config возвращает значение ключа с учётом предков.
func (s *Step) Config(key string) any {
	v, _ := s.tree.configValue(s.id, key)
	return v
}

// SetConfig задаёт ключ собственной конфигурации шага.
func (s *Step) SetConfig(key string, value any) *Step {
	n := s.node()
	if n.config == nil {
		n.config = make(map[string]any)
	}
	n.config[key] = value
	return s
}

// MergeConfig сливает map в собственную конфигурацию шага (неглубоко).
func (s *Step) MergeConfig(values map[string]any) *Step {
	n := s.node()
	if n.config == nil {
		n.config = make(map[string]any, len(values))
	}
	maps.Copy(n.config, values)
	return s
}

// OwnConfig возвращает копию собственной конфигурации шага.
func (s *Step) OwnConfig() map[string]any {
	return maps.Clone(s.node().config)
}

// MergedConfig возвращает конфигурацию с учётом всех предков.
func (s *Step) MergedConfig() map[string]any {
	return s.tree.mergedConfig(s.id)
}

// Context возвращает контекст шага: заданный явно или полученный от родителя.
func (s *Step) Context() any {
	return s.tree.contextOf(s.id)
}

// SetContext задаёт контекст шага явно. Он выигрывает у контекста родителя.
func (s *Step) SetContext(v any) *Step {
	n := s.node()
	n.ownCtx, n.hasOwnCtx = v, true
	return s
}

// Output возвращает выход шага, nil до выполнения.
func (s *Step) Output() any {
	return s.node().output
}

// SetOutput задаёт выход шага.
func (s *Step) SetOutput(v any) *Step {
	s.node().output = v
	return s
}

// Agent возвращает клиент шага с учётом предков.
func (s *Step) Agent() agent.Agent {
	return s.tree.agentOf(s.id)
}

// WithAgent переопределяет клиент для шага и его поддерева.
func (s *Step) WithAgent(a agent.Agent) *Step {
	s.node().agent = a
	return s
}

// Source возвращает источник стрима с учётом предков.
func (s *Step) Source() Source {
	return s.tree.sourceOf(s.id)
}

// WithSource задаёт источник стрима для шага и его поддерева.
func (s *Step) WithSource(src Source) *Step {
	s.node().source = src
	return s
}

// String возвращает путь шага от корня.
// В форке путь начинается от корня исходного сценария.
func (s *Step) String() string {
	base := s.tree.base
	if s.IsRoot() && base != "" {
		return base
	}
	name := s.Name()
	for p := s.Back(); p != nil; p = p.Back() {
		if p.IsRoot() && base != "" {
			return base + "/" + name
		}
		name = p.Name() + "/" + name
	}
	return name
}
