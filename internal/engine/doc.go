// Package engine содержит дерево шагов сценария и цикл его выполнения.
//
// Включает:
//   - tree.go       — арена узлов: добавление, перенос, копирование поддеревьев
//   - step.go       — Step, ссылка на узел, и общие fluent-методы
//   - verbs.go      — глаголы (Actor, Followers, Follow, Like...)
//   - list.go       — списки: skip/take, Each, выполнение детей для каждого элемента
//   - stream.go     — стримы: Source, очередь, выполнение детей для каждого сообщения
//   - when.go       — условия (bool, функции, шаблоны, выражения expr)
//   - hooks.go      — BeforeStep/AfterStep
//   - resolvable.go — значения, вычисляемые в момент выполнения
//   - template.go   — рендеринг Go templates ({{ .Context.handle }})
//
// Пример:
//
//	root := engine.New(client)
//	root.Actor("alice.bsky.social").
//	    Followers().Take(10).
//	    Each().Follow()
//	if _, err := root.Run(ctx); err != nil {
//	    // ...
//	}
//
// Контекст шага — выход ближайшего выполненного предка. Элементы списков
// и сообщения стримов выполняются на изолированных копиях поддерева.
// Выполнение последовательное, первая ошибка останавливает сценарий.
package engine
