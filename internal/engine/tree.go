package engine

import (
	"maps"
	"slices"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
	"github.com/pirhoo/trotsky-sub000/internal/steps"
)

// NodeKind — вариант узла дерева.
type NodeKind int

const (
	// KindRoot — корень сценария, сам ничего не делает.
	KindRoot NodeKind = iota

	// KindLeaf — глагол из пакета steps (actor, follow, wait...).
	KindLeaf

	// KindList — постраничный список с окном skip/take.
	KindList

	// KindEntry — заглушка для дочерних шагов элемента списка или стрима.
	KindEntry

	// KindStream — подписка на стрим сообщений.
	KindStream

	// KindWhen — условие, ложное значение останавливает соседей.
	KindWhen

	// KindTap — пользовательский callback.
	KindTap
)

// String возвращает имя варианта.
func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindLeaf:
		return "leaf"
	case KindList:
		return "list"
	case KindEntry:
		return "entry"
	case KindStream:
		return "stream"
	case KindWhen:
		return "when"
	case KindTap:
		return "tap"
	default:
		return "unknown"
	}
}

const noParent = -1

// node — слот в арене дерева.
//
// Узлы ссылаются друг на друга только индексами, поэтому копия
// поддерева — это копия структур с переписанными индексами.
type node struct {
	kind     NodeKind
	name     string
	parent   int
	children []int

	agent  agent.Agent // nil — берётся у предка
	source Source      // nil — берётся у предка
	config map[string]any

	ownCtx    any
	hasOwnCtx bool
	ctx       any // контекст, выданный циклом выполнения
	output    any

	// Состояние вариантов
	verb     steps.Step
	args     map[string]Resolvable[any]
	pager    steps.Pager
	stream   *steps.StreamSpec
	skip     Resolvable[int]
	take     Resolvable[int]
	iterator StepFunc
	pred     Resolvable[bool]
	tap      StepFunc
}

// Tree — арена узлов одного сценария.
//
// Не потокобезопасен: сценарий выполняется последовательно.
type Tree struct {
	nodes []node
	hooks *Hooks
	errs  []error

	name string
	cron string

	// base — путь родителя в исходном дереве, для форков.
	base string
}

func newTree(hooks *Hooks) *Tree {
	if hooks == nil {
		hooks = &Hooks{}
	}
	return &Tree{hooks: hooks}
}

// add добавляет узел и возвращает его индекс.
func (t *Tree) add(n node) int {
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// attach делает child последним ребёнком parent.
func (t *Tree) attach(parent, child int) {
	t.nodes[child].parent = parent
	t.nodes[parent].children = append(t.nodes[parent].children, child)
}

// detach отвязывает узел от родителя.
func (t *Tree) detach(child int) {
	parent := t.nodes[child].parent
	if parent == noParent {
		return
	}
	t.nodes[parent].children = slices.DeleteFunc(slices.Clone(t.nodes[parent].children), func(id int) bool {
		return id == child
	})
	t.nodes[child].parent = noParent
}

// isAncestor возвращает true, если a — предок b (или совпадает с ним).
func (t *Tree) isAncestor(a, b int) bool {
	for id := b; id != noParent; id = t.nodes[id].parent {
		if id == a {
			return true
		}
	}
	return false
}

// top возвращает самый верхний узел над id.
func (t *Tree) top(id int) int {
	for t.nodes[id].parent != noParent {
		id = t.nodes[id].parent
	}
	return id
}

// copyFrom копирует узел id из src (возможно, того же дерева) в t.
// Копия отвязана от родителя и не имеет выхода.
func (t *Tree) copyFrom(src *Tree, id int, withChildren bool) int {
	n := src.nodes[id]
	children := slices.Clone(n.children)

	n.parent = noParent
	n.children = nil
	n.config = maps.Clone(n.config)
	n.args = maps.Clone(n.args)
	n.ctx = nil
	n.output = nil

	nid := len(t.nodes)
	t.nodes = append(t.nodes, n)

	if withChildren {
		for _, c := range children {
			cid := t.copyFrom(src, c, true)
			t.attach(nid, cid)
		}
	}
	return nid
}

// fork копирует узел id в новое дерево под синтетическим корнем.
//
// Корень получает agent, source и конфигурацию родителя id.
// Форк видит снимок хуков: добавленные в нём хуки не попадают в t.
func (t *Tree) fork(id int, withChildren bool) *Step {
	ft := newTree(t.hooks.clone())
	ft.name = t.name
	ft.cron = t.cron
	root := node{kind: KindRoot, name: "root", parent: noParent}
	if parent := t.nodes[id].parent; parent != noParent {
		root.agent = t.agentOf(parent)
		root.source = t.sourceOf(parent)
		root.config = t.mergedConfig(parent)
		ft.base = (&Step{tree: t, id: parent}).String()
	}
	rid := ft.add(root)
	cid := ft.copyFrom(t, id, withChildren)
	ft.attach(rid, cid)
	return &Step{tree: ft, id: cid}
}

// agentOf возвращает ближайший Agent вверх по дереву.
func (t *Tree) agentOf(id int) agent.Agent {
	for ; id != noParent; id = t.nodes[id].parent {
		if a := t.nodes[id].agent; a != nil {
			return a
		}
	}
	return nil
}

// sourceOf возвращает ближайший источник стрима вверх по дереву.
func (t *Tree) sourceOf(id int) Source {
	for ; id != noParent; id = t.nodes[id].parent {
		if src := t.nodes[id].source; src != nil {
			return src
		}
	}
	return nil
}

// configValue ищет ключ от узла к корню, ближайший выигрывает.
func (t *Tree) configValue(id int, key string) (any, bool) {
	for ; id != noParent; id = t.nodes[id].parent {
		if v, ok := t.nodes[id].config[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// mergedConfig собирает конфигурацию от корня к узлу.
func (t *Tree) mergedConfig(id int) map[string]any {
	var chain []int
	for ; id != noParent; id = t.nodes[id].parent {
		chain = append(chain, id)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		maps.Copy(out, t.nodes[chain[i]].config)
	}
	return out
}

// contextOf возвращает контекст узла: явный или выданный циклом.
func (t *Tree) contextOf(id int) any {
	n := t.nodes[id]
	if n.hasOwnCtx {
		return n.ownCtx
	}
	return n.ctx
}

// dispatch передаёт контекст ребёнку: выход родителя,
// а если его нет — контекст родителя. Выход When — служебный и не передаётся.
func (t *Tree) dispatch(parent, child int) {
	if out := t.nodes[parent].output; out != nil && t.nodes[parent].kind != KindWhen {
		t.nodes[child].ctx = out
		return
	}
	t.nodes[child].ctx = t.contextOf(parent)
}

// flatten возвращает поддерево id в порядке pre-order без самого id.
func (t *Tree) flatten(id int) []int {
	var out []int
	for _, c := range t.nodes[id].children {
		out = append(out, c)
		out = append(out, t.flatten(c)...)
	}
	return out
}
