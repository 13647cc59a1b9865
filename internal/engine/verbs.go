package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pirhoo/trotsky-sub000/internal/steps"
)

// Registry — реестр глаголов, из которого строятся листья и списки.
var Registry = steps.DefaultRegistry()

// Args — аргументы глагола. Значения могут быть Resolvable, функциями
// от шага или строками с шаблонами.
type Args map[string]any

// toArgs приводит аргументы к вычисляемым значениям.
func toArgs(args Args) (map[string]Resolvable[any], error) {
	out := make(map[string]Resolvable[any], len(args))
	for key, v := range args {
		if v == nil {
			continue
		}
		r, err := toArg(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = r
	}
	return out, nil
}

// toArg приводит одно значение к Resolvable[any].
func toArg(v any) (Resolvable[any], error) {
	switch x := v.(type) {
	case Resolvable[any]:
		return x, nil
	case Resolvable[string]:
		return Erase(x), nil
	case Resolvable[int]:
		return Erase(x), nil
	case Resolvable[bool]:
		return Erase(x), nil
	case string:
		r, err := Coerce[string](x)
		return Erase(r), err
	case func(*Step) string, func(context.Context, *Step) (string, error), <-chan string, chan string:
		r, err := Coerce[string](x)
		return Erase(r), err
	case func(*Step) int, func(context.Context, *Step) (int, error):
		r, err := Coerce[int](x)
		return Erase(r), err
	case func(*Step) any, func(context.Context, *Step) (any, error), <-chan any:
		return Coerce[any](x)
	case map[string]any, []any, map[string]string, []string:
		// Вложенные строки рендерятся как шаблоны на момент выполнения
		return Resolver(func(_ context.Context, s *Step) (any, error) {
			return RenderValue(x, NewTemplateData(s))
		}), nil
	case time.Duration:
		return Value[any](x.Milliseconds()), nil
	default:
		return Value(v), nil
	}
}

// Do добавляет глагол по имени из реестра.
//
// Списочные глаголы создают узел-список, стримы — узел-стрим, остальные — лист.
// Возвращает созданный шаг.
func (s *Step) Do(verb string, args Args) *Step {
	if spec := streamSpec(verb); spec != nil {
		return s.streamStep(spec)
	}

	impl, err := Registry.Get(verb)
	if err != nil {
		s.fail(verb, err)
		return s
	}
	resolved, err := toArgs(args)
	if err != nil {
		s.fail(verb, err)
		return s
	}

	n := node{name: verb, args: resolved}
	if pager, ok := impl.(steps.Pager); ok {
		n.kind, n.pager = KindList, pager
	} else {
		n.kind, n.verb = KindLeaf, impl
	}
	return s.scope().appendNode(n)
}

// action добавляет изменяющий глагол и возвращает исходный шаг.
func (s *Step) action(verb string, args Args) *Step {
	s.Do(verb, args)
	return s
}

// optional возвращает аргументы с ключом, если значение передано.
func optional(key string, v []any) Args {
	if len(v) == 0 {
		return nil
	}
	return Args{key: v[0]}
}

// Actor загружает профиль актора (handle или DID).
func (s *Step) Actor(actor any) *Step {
	return s.Do(steps.StepTypeActor, Args{steps.ArgActor: actor})
}

// Actors загружает профили нескольких акторов.
func (s *Step) Actors(actors any) *Step {
	return s.Do(steps.StepTypeActors, Args{steps.ArgActors: actors})
}

// Post загружает пост по AT URI.
func (s *Step) Post(uri any) *Step {
	return s.Do(steps.StepTypePost, Args{steps.ArgURI: uri})
}

// List загружает описание списка по AT URI.
func (s *Step) List(uri any) *Step {
	return s.Do(steps.StepTypeList, Args{steps.ArgURI: uri})
}

// ListMembers — участники списка из контекста или по URI.
func (s *Step) ListMembers(uri ...any) *Step {
	return s.Do(steps.StepTypeListMembers, optional(steps.ArgURI, uri))
}

// Followers — подписчики актора из контекста.
func (s *Step) Followers(actor ...any) *Step {
	return s.Do(steps.StepTypeFollowers, optional(steps.ArgActor, actor))
}

// Follows — подписки актора из контекста.
func (s *Step) Follows(actor ...any) *Step {
	return s.Do(steps.StepTypeFollows, optional(steps.ArgActor, actor))
}

// Feed — посты актора из контекста.
func (s *Step) Feed(actor ...any) *Step {
	return s.Do(steps.StepTypeFeed, optional(steps.ArgActor, actor))
}

// Likes — посты, которые лайкнул актор из контекста.
func (s *Step) Likes(actor ...any) *Step {
	return s.Do(steps.StepTypeLikes, optional(steps.ArgActor, actor))
}

// Likers — акторы, лайкнувшие пост из контекста.
func (s *Step) Likers(uri ...any) *Step {
	return s.Do(steps.StepTypeLikers, optional(steps.ArgURI, uri))
}

// Reposters — акторы, сделавшие репост поста из контекста.
func (s *Step) Reposters(uri ...any) *Step {
	return s.Do(steps.StepTypeReposters, optional(steps.ArgURI, uri))
}

// SearchPosts ищет посты.
func (s *Step) SearchPosts(q any) *Step {
	return s.Do(steps.StepTypeSearchPosts, Args{steps.ArgQuery: q})
}

// SearchActors ищет акторов.
func (s *Step) SearchActors(q any) *Step {
	return s.Do(steps.StepTypeSearchActors, Args{steps.ArgQuery: q})
}

// Timeline — домашняя лента.
func (s *Step) Timeline() *Step {
	return s.Do(steps.StepTypeTimeline, nil)
}

// Notifications — уведомления.
func (s *Step) Notifications() *Step {
	return s.Do(steps.StepTypeNotifications, nil)
}

// Transform строит новый контекст по шаблонам.
func (s *Step) Transform(mappings map[string]any) *Step {
	return s.Do(steps.StepTypeTransform, Args{steps.ArgMappings: mappings})
}

// Follow подписывается на актора из контекста.
func (s *Step) Follow() *Step {
	return s.action(steps.StepTypeFollow, nil)
}

// Unfollow отписывается от актора из контекста.
func (s *Step) Unfollow() *Step {
	return s.action(steps.StepTypeUnfollow, nil)
}

// Block блокирует актора из контекста.
func (s *Step) Block() *Step {
	return s.action(steps.StepTypeBlock, nil)
}

// Unblock снимает блокировку.
func (s *Step) Unblock() *Step {
	return s.action(steps.StepTypeUnblock, nil)
}

// Mute скрывает актора из контекста.
func (s *Step) Mute() *Step {
	return s.action(steps.StepTypeMute, nil)
}

// Unmute снимает скрытие.
func (s *Step) Unmute() *Step {
	return s.action(steps.StepTypeUnmute, nil)
}

// Like лайкает пост из контекста.
func (s *Step) Like() *Step {
	return s.action(steps.StepTypeLike, nil)
}

// Unlike снимает лайк.
func (s *Step) Unlike() *Step {
	return s.action(steps.StepTypeUnlike, nil)
}

// Repost репостит пост из контекста.
func (s *Step) Repost() *Step {
	return s.action(steps.StepTypeRepost, nil)
}

// Unrepost удаляет репост.
func (s *Step) Unrepost() *Step {
	return s.action(steps.StepTypeUnrepost, nil)
}

// Reply отвечает на пост из контекста.
func (s *Step) Reply(text any) *Step {
	return s.action(steps.StepTypeReply, Args{steps.ArgText: text})
}

// CreatePost публикует пост.
func (s *Step) CreatePost(text any) *Step {
	return s.action(steps.StepTypeCreatePost, Args{steps.ArgText: text})
}

// Wait приостанавливает сценарий. Число — миллисекунды.
func (s *Step) Wait(d any) *Step {
	return s.action(steps.StepTypeWait, Args{steps.ArgDurationMs: d})
}

// Save записывает контекст в JSON файл.
func (s *Step) Save(path any) *Step {
	return s.action(steps.StepTypeSave, Args{steps.ArgPath: path})
}

// Webhook отправляет контекст POST запросом.
func (s *Step) Webhook(url any, headers ...map[string]string) *Step {
	args := Args{steps.ArgURL: url}
	if len(headers) > 0 {
		args[steps.ArgHeaders] = headers[0]
	}
	return s.action(steps.StepTypeWebhook, args)
}

// Tap вызывает callback с текущим шагом. Контекст не меняется.
func (s *Step) Tap(fn any) *Step {
	f, err := coerceStepFunc(fn)
	if err != nil {
		s.fail("tap", err)
		return s
	}
	if f == nil {
		s.fail("tap", fmt.Errorf("%w: nil callback", ErrInvalidArgument))
		return s
	}
	s.scope().appendNode(node{kind: KindTap, name: "tap", tap: f})
	return s
}

// streamStep добавляет узел-стрим.
func (s *Step) streamStep(spec *steps.StreamSpec) *Step {
	return s.scope().appendNode(node{kind: KindStream, name: spec.Type(), stream: spec})
}

// streamSpec возвращает описание стрима по имени глагола или nil.
func streamSpec(verb string) *steps.StreamSpec {
	switch verb {
	case steps.StepTypeStreamPosts:
		return steps.NewStreamPostsSpec()
	case steps.StepTypeStreamFollows:
		return steps.NewStreamFollowsSpec()
	case steps.StepTypeStreamLikes:
		return steps.NewStreamLikesSpec()
	}
	return nil
}

// StreamPosts подписывается на новые посты.
func (s *Step) StreamPosts() *Step {
	return s.streamStep(steps.NewStreamPostsSpec())
}

// StreamFollows подписывается на новые подписки.
func (s *Step) StreamFollows() *Step {
	return s.streamStep(steps.NewStreamFollowsSpec())
}

// StreamLikes подписывается на новые лайки.
func (s *Step) StreamLikes() *Step {
	return s.streamStep(steps.NewStreamLikesSpec())
}
