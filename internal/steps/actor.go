package steps

import (
	"context"
	"fmt"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Типы шагов для акторов.
const (
	StepTypeActor    = "actor"
	StepTypeFollow   = "follow"
	StepTypeUnfollow = "unfollow"
	StepTypeBlock    = "block"
	StepTypeUnblock  = "unblock"
	StepTypeMute     = "mute"
	StepTypeUnmute   = "unmute"
)

// Ключ аргумента с актором (DID или handle).
const ArgActor = "actor"

// NSID методов для акторов.
const (
	methodGetProfile  = "app.bsky.actor.getProfile"
	methodMuteActor   = "app.bsky.graph.muteActor"
	methodUnmuteActor = "app.bsky.graph.unmuteActor"
)

// ActorStep загружает профиль актора.
//
// Аргументы:
//
//	{"actor": "alice.bsky.social"}  // если не задан — DID из контекста
//
// Output: профиль (app.bsky.actor.defs#profileViewDetailed).
type ActorStep struct{}

// NewActorStep создаёт новый ActorStep.
func NewActorStep() *ActorStep {
	return &ActorStep{}
}

// Type возвращает тип шага.
func (s *ActorStep) Type() string {
	return StepTypeActor
}

// Execute загружает профиль.
func (s *ActorStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	actor, err := req.actorArg(ArgActor)
	if err != nil {
		return nil, err
	}
	out, err := req.Agent.Query(ctx, methodGetProfile, map[string]any{"actor": actor})
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", actor, err)
	}
	return NewResponse(out), nil
}

// RecordStep создаёт запись с субъектом-актором (follow, block).
//
// Аргументы:
//
//	{"actor": "did:plc:..."}  // если не задан — DID из контекста
//
// Output: {"uri": "...", "cid": "..."} созданной записи.
type RecordStep struct {
	typ        string
	collection string
}

// NewFollowStep создаёт шаг подписки на актора.
func NewFollowStep() *RecordStep {
	return &RecordStep{typ: StepTypeFollow, collection: domain.CollectionFollow}
}

// NewBlockStep создаёт шаг блокировки актора.
func NewBlockStep() *RecordStep {
	return &RecordStep{typ: StepTypeBlock, collection: domain.CollectionBlock}
}

// Type возвращает тип шага.
func (s *RecordStep) Type() string {
	return s.typ
}

// Execute создаёт запись.
func (s *RecordStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	subject, err := req.actorArg(ArgActor)
	if err != nil {
		return nil, err
	}
	if req.DryRun() {
		return NewResponse(dryRunOutput(s.typ, subject)), nil
	}
	ref, err := agent.CreateRecord(ctx, req.Agent, s.collection, map[string]any{"subject": subject})
	if err != nil {
		return nil, err
	}
	return NewResponse(ref.Map()), nil
}

// UndoStep удаляет запись, на которую указывает viewer-состояние профиля
// (unfollow → viewer.following, unblock → viewer.blocking).
//
// Если запись не найдена, шаг ничего не делает.
type UndoStep struct {
	typ    string
	viewer func(domain.Viewer) string
}

// NewUnfollowStep создаёт шаг отписки.
func NewUnfollowStep() *UndoStep {
	return &UndoStep{typ: StepTypeUnfollow, viewer: func(v domain.Viewer) string { return v.Following }}
}

// NewUnblockStep создаёт шаг разблокировки.
func NewUnblockStep() *UndoStep {
	return &UndoStep{typ: StepTypeUnblock, viewer: func(v domain.Viewer) string { return v.Blocking }}
}

// Type возвращает тип шага.
func (s *UndoStep) Type() string {
	return s.typ
}

// Execute удаляет запись.
func (s *UndoStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}

	uri := s.viewer(domain.ViewerOf(req.Context))
	if uri == "" {
		// В контексте нет viewer — перечитываем профиль
		actor, err := req.actorArg(ArgActor)
		if err != nil {
			return nil, err
		}
		out, err := req.Agent.Query(ctx, methodGetProfile, map[string]any{"actor": actor})
		if err != nil {
			return nil, fmt.Errorf("get profile %s: %w", actor, err)
		}
		uri = s.viewer(domain.ViewerOf(out))
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

// MuteStep вызывает muteActor / unmuteActor.
type MuteStep struct {
	typ    string
	method string
}

// NewMuteStep создаёт шаг mute.
func NewMuteStep() *MuteStep {
	return &MuteStep{typ: StepTypeMute, method: methodMuteActor}
}

// NewUnmuteStep создаёт шаг unmute.
func NewUnmuteStep() *MuteStep {
	return &MuteStep{typ: StepTypeUnmute, method: methodUnmuteActor}
}

// Type возвращает тип шага.
func (s *MuteStep) Type() string {
	return s.typ
}

// Execute выполняет процедуру.
func (s *MuteStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	if err := req.requireAgent(); err != nil {
		return nil, err
	}
	actor, err := req.actorArg(ArgActor)
	if err != nil {
		return nil, err
	}
	if req.DryRun() {
		return NewResponse(dryRunOutput(s.typ, actor)), nil
	}
	if _, err := req.Agent.Procedure(ctx, s.method, map[string]any{"actor": actor}); err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.typ, actor, err)
	}
	return NewResponse(map[string]any{"actor": actor}), nil
}

// dryRunOutput — выход изменяющего шага в режиме dry_run.
func dryRunOutput(typ, subject string) map[string]any {
	return map[string]any{
		"uri":     "",
		"dry_run": true,
		"step":    typ,
		"subject": subject,
	}
}
