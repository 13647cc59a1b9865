package scenario

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/pirhoo/trotsky-sub000/internal/engine"
	"github.com/pirhoo/trotsky-sub000/internal/steps"
)

// Формы аргументов. Используются только для проверки ключей и типов,
// в движок уходит исходный map, чтобы шаблоны вычислялись при выполнении.
type (
	noArgs     struct{}
	actorArgs  struct{ Actor string `mapstructure:"actor"` }
	actorsArgs struct{ Actors []string `mapstructure:"actors"` }
	recordArgs struct {
		URI string `mapstructure:"uri"`
		CID string `mapstructure:"cid"`
	}
	textArgs struct {
		Text  string   `mapstructure:"text"`
		Langs []string `mapstructure:"langs"`
	}
	queryArgs struct{ Q string `mapstructure:"q"` }
	waitArgs  struct {
		DurationMs  int64 `mapstructure:"duration_ms"`
		DurationSec int64 `mapstructure:"duration_sec"`
	}
	saveArgs    struct{ Path string `mapstructure:"path"` }
	webhookArgs struct {
		URL     string            `mapstructure:"url"`
		Method  string            `mapstructure:"method"`
		Headers map[string]string `mapstructure:"headers"`
	}
	transformArgs struct {
		Mappings map[string]any `mapstructure:"mappings"`
	}
)

// verbSpec описывает аргументы глагола.
type verbSpec struct {
	// primary — ключ для скалярной формы "verb: value". Пусто — скаляр запрещён.
	primary string
	shape   func() any
}

var verbs = map[string]verbSpec{
	steps.StepTypeActor:    {steps.ArgActor, func() any { return &actorArgs{} }},
	steps.StepTypeFollow:   {"", func() any { return &noArgs{} }},
	steps.StepTypeUnfollow: {"", func() any { return &noArgs{} }},
	steps.StepTypeBlock:    {"", func() any { return &noArgs{} }},
	steps.StepTypeUnblock:  {"", func() any { return &noArgs{} }},
	steps.StepTypeMute:     {"", func() any { return &noArgs{} }},
	steps.StepTypeUnmute:   {"", func() any { return &noArgs{} }},

	steps.StepTypePost:       {steps.ArgURI, func() any { return &recordArgs{} }},
	steps.StepTypeCreatePost: {steps.ArgText, func() any { return &textArgs{} }},
	steps.StepTypeReply:      {steps.ArgText, func() any { return &textArgs{} }},
	steps.StepTypeLike:       {"", func() any { return &recordArgs{} }},
	steps.StepTypeUnlike:     {"", func() any { return &recordArgs{} }},
	steps.StepTypeRepost:     {"", func() any { return &recordArgs{} }},
	steps.StepTypeUnrepost:   {"", func() any { return &recordArgs{} }},

	steps.StepTypeActors:        {steps.ArgActors, func() any { return &actorsArgs{} }},
	steps.StepTypeFollowers:     {steps.ArgActor, func() any { return &actorArgs{} }},
	steps.StepTypeFollows:       {steps.ArgActor, func() any { return &actorArgs{} }},
	steps.StepTypeFeed:          {steps.ArgActor, func() any { return &actorArgs{} }},
	steps.StepTypeLikes:         {steps.ArgActor, func() any { return &actorArgs{} }},
	steps.StepTypeLikers:        {steps.ArgURI, func() any { return &recordArgs{} }},
	steps.StepTypeReposters:     {steps.ArgURI, func() any { return &recordArgs{} }},
	steps.StepTypeSearchPosts:   {steps.ArgQuery, func() any { return &queryArgs{} }},
	steps.StepTypeSearchActors:  {steps.ArgQuery, func() any { return &queryArgs{} }},
	steps.StepTypeTimeline:      {"", func() any { return &noArgs{} }},
	steps.StepTypeNotifications: {"", func() any { return &noArgs{} }},
	steps.StepTypeListMembers:   {steps.ArgURI, func() any { return &recordArgs{} }},
	steps.StepTypeList:          {steps.ArgURI, func() any { return &recordArgs{} }},

	steps.StepTypeStreamPosts:   {"", func() any { return &noArgs{} }},
	steps.StepTypeStreamFollows: {"", func() any { return &noArgs{} }},
	steps.StepTypeStreamLikes:   {"", func() any { return &noArgs{} }},

	steps.StepTypeWait:      {steps.ArgDurationMs, func() any { return &waitArgs{} }},
	steps.StepTypeSave:      {steps.ArgPath, func() any { return &saveArgs{} }},
	steps.StepTypeWebhook:   {steps.ArgURL, func() any { return &webhookArgs{} }},
	steps.StepTypeTransform: {steps.ArgMappings, func() any { return &transformArgs{} }},
}

// Verbs возвращает имена глаголов, доступных в файле сценария.
func Verbs() []string {
	out := make([]string, 0, len(verbs))
	for v := range verbs {
		out = append(out, v)
	}
	return out
}

// buildArgs превращает значение глагола в аргументы шага и проверяет их форму.
func buildArgs(verb string, value any) (engine.Args, error) {
	spec, ok := verbs[verb]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
	}

	var args engine.Args
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		args = engine.Args(v)
	default:
		if spec.primary == "" {
			return nil, fmt.Errorf("%w: %s takes no positional argument", ErrInvalidArgs, verb)
		}
		args = engine.Args{spec.primary: v}
	}

	if verb == steps.StepTypeWait {
		if err := normalizeWait(args); err != nil {
			return nil, err
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      spec.shape(),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(args)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgs, verb, err)
	}
	return args, nil
}

// normalizeWait переводит "1500ms", "2s" в миллисекунды.
func normalizeWait(args engine.Args) error {
	s, ok := args[steps.ArgDurationMs].(string)
	if !ok {
		return nil
	}
	d, err := steps.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	args[steps.ArgDurationMs] = d.Milliseconds()
	return nil
}
