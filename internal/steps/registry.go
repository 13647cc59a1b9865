package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр типов шагов.
//
// Позволяет регистрировать и получать реализации Step по типу глагола.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[string]Step),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными шагами.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Акторы и граф
	r.Register(NewActorStep())
	r.Register(NewFollowStep())
	r.Register(NewUnfollowStep())
	r.Register(NewBlockStep())
	r.Register(NewUnblockStep())
	r.Register(NewMuteStep())
	r.Register(NewUnmuteStep())

	// Посты
	r.Register(NewPostStep())
	r.Register(NewCreatePostStep())
	r.Register(NewReplyStep())
	r.Register(NewLikeStep())
	r.Register(NewUnlikeStep())
	r.Register(NewRepostStep())
	r.Register(NewUnrepostStep())

	// Списки
	r.Register(NewActorsStep())
	r.Register(NewFollowersStep())
	r.Register(NewFollowsStep())
	r.Register(NewFeedStep())
	r.Register(NewLikesStep())
	r.Register(NewLikersStep())
	r.Register(NewRepostersStep())
	r.Register(NewSearchPostsStep())
	r.Register(NewSearchActorsStep())
	r.Register(NewTimelineStep())
	r.Register(NewNotificationsStep())
	r.Register(NewListMembersStep())
	r.Register(NewListViewStep())

	// Служебные
	r.Register(NewWaitStep())
	r.Register(NewSaveStep())
	r.Register(NewTransformStep())
	r.Register(NewWebhookStep())

	return r
}

// Register регистрирует шаг в реестре.
// Если шаг с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Type()] = step
}

// Get возвращает шаг по типу.
// Возвращает ErrStepNotFound, если шаг не найден.
func (r *Registry) Get(stepType string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[stepType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepType)
	}

	return step, nil
}

// Types возвращает список всех зарегистрированных типов шагов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.steps))
	for t := range r.steps {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
