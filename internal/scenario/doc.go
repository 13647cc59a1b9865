// Package scenario собирает дерево шагов из YAML файла.
//
// Формат:
//
//	name: greeter
//	schedule: "0 9 * * *"
//	config:
//	  dry_run: true
//	  page_size: 50
//	steps:
//	  - actor: alice.bsky.social
//	    steps:
//	      - followers:
//	        take: 10
//	        each:
//	          - when: "context.viewer.following == ''"
//	          - follow:
//	          - wait: 2s
//
// Каждый элемент steps — map с одним ключом-глаголом. Значение глагола —
// скаляр (главный аргумент), map аргументов или пусто. Служебные ключи:
//   - steps, each — дочерние шаги (each — для списков и стримов)
//   - skip, take  — окно списка или стрима
//   - config      — конфигурация шага
//
// Ошибки построения возвращаются как *domain.Error категории validation
// с путём шага вида steps[0].each[1].
package scenario
