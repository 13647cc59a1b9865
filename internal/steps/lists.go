package steps

import (
	"context"
	"fmt"
)

// Типы списочных шагов.
const (
	StepTypeActors        = "actors"
	StepTypeFollowers     = "followers"
	StepTypeFollows       = "follows"
	StepTypeFeed          = "feed"
	StepTypeLikes         = "likes"
	StepTypeLikers        = "likers"
	StepTypeReposters     = "reposters"
	StepTypeSearchPosts   = "search_posts"
	StepTypeSearchActors  = "search_actors"
	StepTypeTimeline      = "timeline"
	StepTypeNotifications = "notifications"
	StepTypeListMembers   = "list_members"
	StepTypeList          = "list"
)

// Ключи аргументов списочных шагов.
const (
	ArgQuery  = "q"
	ArgActors = "actors"
)

// ListStep — постраничный XRPC query.
//
// Движок вызывает FetchPage, пока не наберёт skip+take элементов.
// Execute без окна возвращает все элементы.
type ListStep struct {
	typ    string
	nsid   string
	field  string
	unwrap string // если задан, элемент заменяется на item[unwrap]
	params func(req *Request) (map[string]any, error)
}

// Type возвращает тип шага.
func (s *ListStep) Type() string {
	return s.typ
}

// Field возвращает имя массива в ответе.
func (s *ListStep) Field() string {
	return s.field
}

// FetchPage загружает одну страницу.
func (s *ListStep) FetchPage(ctx context.Context, req *Request, cursor string) (map[string]any, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	params := map[string]any{}
	if s.params != nil {
		p, err := s.params(req)
		if err != nil {
			return nil, err
		}
		params = p
	}
	if cursor != "" {
		params["cursor"] = cursor
	}
	if n := GetConfigInt(req.Config, ConfigPageSize); n > 0 {
		params["limit"] = n
	}

	page, err := req.Agent.Query(ctx, s.nsid, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.typ, err)
	}

	if s.unwrap != "" {
		if items, ok := page[s.field].([]any); ok {
			unwrapped := make([]any, 0, len(items))
			for _, item := range items {
				if m, ok := item.(map[string]any); ok && m[s.unwrap] != nil {
					unwrapped = append(unwrapped, m[s.unwrap])
					continue
				}
				unwrapped = append(unwrapped, item)
			}
			page[s.field] = unwrapped
		}
	}
	return page, nil
}

// Execute возвращает все элементы списка.
func (s *ListStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	items, err := Paginate(ctx, s.field, func(ctx context.Context, cursor string) (map[string]any, error) {
		return s.FetchPage(ctx, req, cursor)
	}, 0, Unbounded)
	if err != nil {
		return nil, err
	}
	return NewResponse(items), nil
}

// actorParams — параметры для списков актора (актор из аргумента или контекста).
func actorParams(req *Request) (map[string]any, error) {
	actor, err := req.actorArg(ArgActor)
	if err != nil {
		return nil, err
	}
	return map[string]any{"actor": actor}, nil
}

// uriParams возвращает параметры с uri записи под указанным ключом.
func uriParams(key string) func(req *Request) (map[string]any, error) {
	return func(req *Request) (map[string]any, error) {
		uri, err := req.uriArg(ArgURI)
		if err != nil {
			return nil, err
		}
		return map[string]any{key: uri}, nil
	}
}

// queryParams — параметры поиска.
func queryParams(req *Request) (map[string]any, error) {
	q := GetConfigString(req.Args, ArgQuery)
	if q == "" {
		return nil, fmt.Errorf("%w: %s: q is required", ErrInvalidConfig, req.StepID)
	}
	return map[string]any{"q": q}, nil
}

// NewActorsStep — профили нескольких акторов (app.bsky.actor.getProfiles).
func NewActorsStep() *ListStep {
	return &ListStep{
		typ:   StepTypeActors,
		nsid:  "app.bsky.actor.getProfiles",
		field: "profiles",
		params: func(req *Request) (map[string]any, error) {
			actors := GetConfigStrings(req.Args, ArgActors)
			if len(actors) == 0 {
				return nil, fmt.Errorf("%w: %s: actors is required", ErrInvalidConfig, req.StepID)
			}
			return map[string]any{"actors": actors}, nil
		},
	}
}

// NewFollowersStep — подписчики актора.
func NewFollowersStep() *ListStep {
	return &ListStep{typ: StepTypeFollowers, nsid: "app.bsky.graph.getFollowers", field: "followers", params: actorParams}
}

// NewFollowsStep — подписки актора.
func NewFollowsStep() *ListStep {
	return &ListStep{typ: StepTypeFollows, nsid: "app.bsky.graph.getFollows", field: "follows", params: actorParams}
}

// NewFeedStep — посты актора.
func NewFeedStep() *ListStep {
	return &ListStep{typ: StepTypeFeed, nsid: "app.bsky.feed.getAuthorFeed", field: "feed", unwrap: "post", params: actorParams}
}

// NewLikesStep — посты, которые лайкнул актор.
func NewLikesStep() *ListStep {
	return &ListStep{typ: StepTypeLikes, nsid: "app.bsky.feed.getActorLikes", field: "feed", unwrap: "post", params: actorParams}
}

// NewLikersStep — акторы, лайкнувшие пост.
func NewLikersStep() *ListStep {
	return &ListStep{typ: StepTypeLikers, nsid: "app.bsky.feed.getLikes", field: "likes", unwrap: "actor", params: uriParams("uri")}
}

// NewRepostersStep — акторы, сделавшие репост.
func NewRepostersStep() *ListStep {
	return &ListStep{typ: StepTypeReposters, nsid: "app.bsky.feed.getRepostedBy", field: "repostedBy", params: uriParams("uri")}
}

// NewSearchPostsStep — поиск постов.
func NewSearchPostsStep() *ListStep {
	return &ListStep{typ: StepTypeSearchPosts, nsid: "app.bsky.feed.searchPosts", field: "posts", params: queryParams}
}

// NewSearchActorsStep — поиск акторов.
func NewSearchActorsStep() *ListStep {
	return &ListStep{typ: StepTypeSearchActors, nsid: "app.bsky.actor.searchActors", field: "actors", params: queryParams}
}

// NewTimelineStep — домашняя лента текущего пользователя.
func NewTimelineStep() *ListStep {
	return &ListStep{typ: StepTypeTimeline, nsid: "app.bsky.feed.getTimeline", field: "feed", unwrap: "post"}
}

// NewNotificationsStep — уведомления текущего пользователя.
func NewNotificationsStep() *ListStep {
	return &ListStep{typ: StepTypeNotifications, nsid: "app.bsky.notification.listNotifications", field: "notifications"}
}

// NewListMembersStep — участники списка из контекста.
func NewListMembersStep() *ListStep {
	return &ListStep{typ: StepTypeListMembers, nsid: "app.bsky.graph.getList", field: "items", unwrap: "subject", params: uriParams("list")}
}

// ListViewStep загружает описание списка (app.bsky.graph.getList).
//
// Аргументы:
//
//	{"uri": "at://did:plc:.../app.bsky.graph.list/..."}
//
// Output: описание списка (поле "list" ответа).
type ListViewStep struct{}

// NewListViewStep создаёт новый ListViewStep.
func NewListViewStep() *ListViewStep {
	return &ListViewStep{}
}

// Type возвращает тип шага.
func (s *ListViewStep) Type() string {
	return StepTypeList
}

// Execute загружает список.
func (s *ListViewStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	uri, err := req.uriArg(ArgURI)
	if err != nil {
		return nil, err
	}
	out, err := req.Agent.Query(ctx, "app.bsky.graph.getList", map[string]any{"list": uri, "limit": 1})
	if err != nil {
		return nil, fmt.Errorf("get list %s: %w", uri, err)
	}
	return NewResponse(out["list"]), nil
}
