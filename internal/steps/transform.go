package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// StepTypeTransform — тип шага трансформации.
	StepTypeTransform = "transform"

	// ArgMappings — ключ аргумента с шаблонами.
	ArgMappings = "mappings"
)

// TransformStep — шаг трансформации контекста.
//
// Шаблоны в mappings рендерятся движком против контекста шага до вызова Execute,
// шаг только приводит результаты к типам.
//
// Аргументы:
//
//	{
//	    "mappings": {
//	        "handle": "{{ .Context.handle }}",
//	        "followers": "{{ .Context.followersCount }}"
//	    }
//	}
//
// Output: map с результатами рендеринга
//
//	{"handle": "alice.bsky.social", "followers": 42}
type TransformStep struct{}

// NewTransformStep создаёт новый TransformStep.
func NewTransformStep() *TransformStep {
	return &TransformStep{}
}

// Type возвращает тип шага.
func (s *TransformStep) Type() string {
	return StepTypeTransform
}

// Execute собирает выход из отрендеренных mappings.
func (s *TransformStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
	}

	mappings := GetConfigMap(req.Args, ArgMappings)
	if len(mappings) == 0 {
		return nil, fmt.Errorf("%w: %s: mappings is required", ErrInvalidConfig, StepTypeTransform)
	}

	output := make(map[string]any, len(mappings))
	for key, val := range mappings {
		if str, ok := val.(string); ok {
			output[key] = s.parseValue(str)
			continue
		}
		output[key] = val
	}

	return NewResponse(output), nil
}

// parseValue пытается распарсить строку как JSON значение.
// Если не получается — возвращает строку как есть.
func (s *TransformStep) parseValue(value string) any {
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return value
	}
	if num, ok := v.(json.Number); ok {
		if i, err := num.Int64(); err == nil {
			return i
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
	}
	return v
}
