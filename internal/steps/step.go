package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип шага не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig — невалидные аргументы шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrNoAgent — шагу нужен Agent, а он не задан.
	ErrNoAgent = errors.New("step has no agent")
)

// Ключи конфигурации сценария, которые читают шаги.
const (
	// ConfigDryRun — не выполнять изменяющие вызовы.
	ConfigDryRun = "dry_run"

	// ConfigPageSize — размер страницы (параметр limit) для списков.
	ConfigPageSize = "page_size"
)

// Step — интерфейс для типов шагов.
//
// Каждый глагол сценария (actor, follow, followers, wait...) реализует этот интерфейс.
type Step interface {
	// Type возвращает тип шага.
	Type() string

	// Execute выполняет шаг и возвращает результат.
	// Шаг должен проверять ctx.Done() для graceful shutdown.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Pager — шаг, который отдаёт данные постранично.
//
// Движок сам обходит страницы и применяет skip/take.
type Pager interface {
	Step

	// Field возвращает имя массива в ответе ("followers", "feed"...).
	Field() string

	// FetchPage загружает одну страницу начиная с cursor.
	FetchPage(ctx context.Context, req *Request, cursor string) (map[string]any, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// StepID — имя шага, используется в ошибках и логах.
	StepID string

	// Agent — клиент к сети.
	Agent agent.Agent

	// Context — контекст шага (обычно результат родительского шага).
	Context any

	// Config — конфигурация сценария с учётом всех предков.
	Config map[string]any

	// Args — аргументы шага, уже вычисленные.
	Args map[string]any
}

// Response — результат выполнения шага.
type Response struct {
	// Output — выход шага. Становится контекстом дочерних шагов.
	Output any
}

// NewRequest создаёт новый Request.
func NewRequest(stepID string, a agent.Agent, stepCtx any, config, args map[string]any) *Request {
	if config == nil {
		config = make(map[string]any)
	}
	if args == nil {
		args = make(map[string]any)
	}
	return &Request{
		StepID:  stepID,
		Agent:   a,
		Context: stepCtx,
		Config:  config,
		Args:    args,
	}
}

// NewResponse создаёт Response с выходом.
func NewResponse(output any) *Response {
	return &Response{Output: output}
}

// EmptyResponse возвращает Response без выхода.
func EmptyResponse() *Response {
	return &Response{}
}

// DryRun возвращает true, если изменяющие вызовы надо пропустить.
func (r *Request) DryRun() bool {
	return GetConfigBool(r.Config, ConfigDryRun, false)
}

// requireAgent проверяет наличие Agent.
func (r *Request) requireAgent() error {
	if r.Agent == nil {
		return fmt.Errorf("%w: %s", ErrNoAgent, r.StepID)
	}
	return nil
}

// missingContext возвращает ошибку валидации для шага без нужного контекста.
func (r *Request) missingContext(want string) error {
	return domain.NewValidationError(r.StepID,
		"context must provide "+want,
		map[string]any{"context": fmt.Sprintf("%T", r.Context)},
		domain.ErrMissingContext,
	)
}

// actorArg возвращает актора из аргумента или DID из контекста.
func (r *Request) actorArg(key string) (string, error) {
	if s := GetConfigString(r.Args, key); s != "" {
		return s, nil
	}
	if did := domain.DID(r.Context); did != "" {
		return did, nil
	}
	return "", r.missingContext("an actor did")
}

// uriArg возвращает AT URI из аргумента или из контекста.
func (r *Request) uriArg(key string) (string, error) {
	if s := GetConfigString(r.Args, key); s != "" {
		return s, nil
	}
	if uri := domain.URI(r.Context); uri != "" {
		return uri, nil
	}
	return "", r.missingContext("a record uri")
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigMap извлекает map из конфига.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetConfigStrings извлекает список строк из конфига.
func GetConfigStrings(config map[string]any, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
