// Package steps содержит реализации глаголов сценария.
//
// # Обзор
//
// Steps — это исполнители конкретных операций с сетью. Каждый шаг:
//   - Получает контекст (результат родительского шага) и вычисленные аргументы
//   - Выполняет действие через agent.Agent (query или procedure)
//   - Возвращает output, который становится контекстом дочерних шагов
//
// Дерево шагов, пагинация, условия и хуки живут в пакете engine.
// Здесь только сами операции.
//
// # Интерфейс Step
//
//	type Step interface {
//	    Type() string
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Списочные шаги дополнительно реализуют Pager, и движок сам
// обходит страницы через Paginate.
//
// # Registry
//
//	registry := steps.DefaultRegistry()
//	step, err := registry.Get("follow")
//	if err != nil {
//	    // неизвестный тип
//	}
//
// # Типы шагов
//
//   - actor, follow, unfollow, block, unblock, mute, unmute — actor.go
//   - post, create_post, reply, like, unlike, repost, unrepost — post.go
//   - followers, follows, feed, likes, likers, reposters, search_posts,
//     search_actors, timeline, notifications, list_members, actors, list — lists.go
//   - stream_posts, stream_follows, stream_likes — stream.go (StreamSpec)
//   - wait — delay.go
//   - save — save.go
//   - transform — transform.go
//   - webhook — webhook.go
//
// # Dry run
//
// Если в конфигурации сценария dry_run = true, изменяющие шаги не
// вызывают сеть и возвращают {"uri": "", "dry_run": true, ...}.
//
// # Обработка ошибок
//
// Шаги возвращают типизированные ошибки:
//
//	var (
//	    ErrStepCancelled   // context cancelled
//	    ErrInvalidConfig   // неверные аргументы
//	    ErrNoAgent         // шагу нужен Agent
//	)
//
// Шаг без нужного контекста возвращает *domain.Error категории validation.
// Retry логики нет, шаги просто возвращают ошибки.
package steps
