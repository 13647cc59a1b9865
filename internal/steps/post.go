package steps

import (
	"context"
	"fmt"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Типы шагов для постов.
const (
	StepTypePost       = "post"
	StepTypeCreatePost = "create_post"
	StepTypeReply      = "reply"
	StepTypeLike       = "like"
	StepTypeUnlike     = "unlike"
	StepTypeRepost     = "repost"
	StepTypeUnrepost   = "unrepost"
)

// Ключи аргументов для постов.
const (
	ArgURI   = "uri"
	ArgCID   = "cid"
	ArgText  = "text"
	ArgLangs = "langs"
)

const methodGetPosts = "app.bsky.feed.getPosts"

// PostStep загружает пост по AT URI.
//
// Аргументы:
//
//	{"uri": "at://did:plc:.../app.bsky.feed.post/..."}  // если не задан — uri из контекста
//
// Output: пост (app.bsky.feed.defs#postView).
type PostStep struct{}

// NewPostStep создаёт новый PostStep.
func NewPostStep() *PostStep {
	return &PostStep{}
}

// Type возвращает тип шага.
func (s *PostStep) Type() string {
	return StepTypePost
}

// Execute загружает пост.
func (s *PostStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	uri, err := req.uriArg(ArgURI)
	if err != nil {
		return nil, err
	}
	post, err := fetchPost(ctx, req, uri)
	if err != nil {
		return nil, err
	}
	return NewResponse(post), nil
}

// fetchPost загружает один пост через getPosts.
func fetchPost(ctx context.Context, req *Request, uri string) (map[string]any, error) {
	out, err := req.Agent.Query(ctx, methodGetPosts, map[string]any{"uris": []string{uri}})
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", uri, err)
	}
	posts, _ := out["posts"].([]any)
	if len(posts) == 0 {
		return nil, domain.NewValidationError(req.StepID, "post not found", map[string]any{"uri": uri}, nil)
	}
	post, ok := posts[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("get post %s: unexpected %T", uri, posts[0])
	}
	return post, nil
}

// CreatePostStep публикует новый пост.
//
// Аргументы:
//
//	{"text": "hello", "langs": ["en"]}
type CreatePostStep struct{}

// NewCreatePostStep создаёт новый CreatePostStep.
func NewCreatePostStep() *CreatePostStep {
	return &CreatePostStep{}
}

// Type возвращает тип шага.
func (s *CreatePostStep) Type() string {
	return StepTypeCreatePost
}

// Execute публикует пост.
func (s *CreatePostStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	record, err := postRecord(req)
	if err != nil {
		return nil, err
	}
	return createRecord(ctx, req, StepTypeCreatePost, domain.CollectionPost, record)
}

// ReplyStep отвечает на пост из контекста.
//
// Аргументы:
//
//	{"text": "reply"}
type ReplyStep struct{}

// NewReplyStep создаёт новый ReplyStep.
func NewReplyStep() *ReplyStep {
	return &ReplyStep{}
}

// Type возвращает тип шага.
func (s *ReplyStep) Type() string {
	return StepTypeReply
}

// Execute публикует ответ.
func (s *ReplyStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	parent, err := strongRef(req)
	if err != nil {
		return nil, err
	}
	record, err := postRecord(req)
	if err != nil {
		return nil, err
	}

	// Корень треда берём из record.reply.root родителя, если он сам ответ
	root := parent.Map()
	if m, ok := req.Context.(map[string]any); ok {
		if r, err := domain.Decode[domain.StrongRef](replyRoot(m)); err == nil && r.URI != "" {
			root = r.Map()
		}
	}
	record["reply"] = map[string]any{"root": root, "parent": parent.Map()}
	return createRecord(ctx, req, StepTypeReply, domain.CollectionPost, record)
}

func replyRoot(post map[string]any) any {
	record, _ := post["record"].(map[string]any)
	reply, _ := record["reply"].(map[string]any)
	return reply["root"]
}

// SubjectStep создаёт запись со ссылкой на пост (like, repost).
type SubjectStep struct {
	typ        string
	collection string
}

// NewLikeStep создаёт шаг лайка.
func NewLikeStep() *SubjectStep {
	return &SubjectStep{typ: StepTypeLike, collection: domain.CollectionLike}
}

// NewRepostStep создаёт шаг репоста.
func NewRepostStep() *SubjectStep {
	return &SubjectStep{typ: StepTypeRepost, collection: domain.CollectionRepost}
}

// Type возвращает тип шага.
func (s *SubjectStep) Type() string {
	return s.typ
}

// Execute создаёт запись.
func (s *SubjectStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	subject, err := strongRef(req)
	if err != nil {
		return nil, err
	}
	return createRecord(ctx, req, s.typ, s.collection, map[string]any{"subject": subject.Map()})
}

// UnsubjectStep удаляет лайк или репост текущего пользователя.
type UnsubjectStep struct {
	typ    string
	viewer func(domain.Viewer) string
}

// NewUnlikeStep создаёт шаг снятия лайка.
func NewUnlikeStep() *UnsubjectStep {
	return &UnsubjectStep{typ: StepTypeUnlike, viewer: func(v domain.Viewer) string { return v.Like }}
}

// NewUnrepostStep создаёт шаг удаления репоста.
func NewUnrepostStep() *UnsubjectStep {
	return &UnsubjectStep{typ: StepTypeUnrepost, viewer: func(v domain.Viewer) string { return v.Repost }}
}

// Type возвращает тип шага.
func (s *UnsubjectStep) Type() string {
	return s.typ
}

// Execute удаляет запись, если она есть.
func (s *UnsubjectStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	uri := s.viewer(domain.ViewerOf(req.Context))
	if uri == "" {
		postURI, err := req.uriArg(ArgURI)
		if err != nil {
			return nil, err
		}
		post, err := fetchPost(ctx, req, postURI)
		if err != nil {
			return nil, err
		}
		uri = s.viewer(domain.ViewerOf(post))
	}
	if uri == "" {
		return EmptyResponse(), nil
	}
	if req.DryRun() {
		return NewResponse(dryRunOutput(s.typ, uri)), nil
	}
	if err := agent.DeleteRecord(ctx, req.Agent, uri); err != nil {
		return nil, err
	}
	return NewResponse(map[string]any{"uri": uri}), nil
}

// postRecord собирает record поста из аргументов.
func postRecord(req *Request) (map[string]any, error) {
	text := GetConfigString(req.Args, ArgText)
	if text == "" {
		return nil, domain.NewValidationError(req.StepID, "text is required", nil, ErrInvalidConfig)
	}
	record := map[string]any{"text": text}
	if langs := GetConfigStrings(req.Args, ArgLangs); len(langs) > 0 {
		record["langs"] = langs
	}
	return record, nil
}

// strongRef берёт ссылку на пост из аргументов или из контекста.
func strongRef(req *Request) (domain.StrongRef, error) {
	ref := domain.StrongRef{
		URI: GetConfigString(req.Args, ArgURI),
		CID: GetConfigString(req.Args, ArgCID),
	}
	if ref.URI == "" {
		ref.URI = domain.URI(req.Context)
		ref.CID = domain.CID(req.Context)
	}
	if ref.URI == "" || ref.CID == "" {
		return ref, req.missingContext("a post uri and cid")
	}
	return ref, nil
}

// createRecord создаёт запись с учётом dry_run.
func createRecord(ctx context.Context, req *Request, typ, collection string, record map[string]any) (*Response, error) {
	if req.DryRun() {
		out := dryRunOutput(typ, "")
		out["record"] = record
		return NewResponse(out), nil
	}
	ref, err := agent.CreateRecord(ctx, req.Agent, collection, record)
	if err != nil {
		return nil, err
	}
	return NewResponse(ref.Map()), nil
}
