package scenario

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pirhoo/trotsky-sub000/internal/agent"
	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
)

// Служебные ключи элемента steps.
const (
	keySteps  = "steps"
	keyEach   = "each"
	keySkip   = "skip"
	keyTake   = "take"
	keyConfig = "config"
	keyWhen   = "when"
)

var reserved = []string{keySteps, keyEach, keySkip, keyTake, keyConfig}

// Build собирает дерево сценария. a может быть nil (проверка без запуска).
//
// Возвращает первую ошибку формата или все ошибки построения дерева.
func Build(doc *Document, a agent.Agent) (*engine.Step, error) {
	if doc == nil || len(doc.Steps) == 0 {
		return nil, ErrEmptyScenario
	}

	root := engine.New(a).Named(doc.Name)
	if doc.Config != nil {
		root.MergeConfig(doc.Config)
	}
	if doc.Schedule != "" {
		root.Schedule(doc.Schedule)
	}

	if err := buildSteps(root, keySteps, doc.Steps); err != nil {
		return nil, err
	}
	if err := root.Err(); err != nil {
		return nil, err
	}
	return root, nil
}

// Validate проверяет документ без агента.
func Validate(doc *Document) error {
	_, err := Build(doc, nil)
	return err
}

// buildSteps добавляет элементы items под parent.
func buildSteps(parent *engine.Step, path string, items []map[string]any) error {
	for i, item := range items {
		if err := buildStep(parent, fmt.Sprintf("%s[%d]", path, i), item); err != nil {
			return err
		}
	}
	return nil
}

// buildStep добавляет один элемент.
func buildStep(parent *engine.Step, path string, item map[string]any) error {
	verb, value, err := splitVerb(item)
	if err != nil {
		return invalid(path, err)
	}

	if verb == keyWhen {
		if len(item) > 1 {
			return invalid(path, fmt.Errorf("%w: when takes no nested keys", ErrMalformedStep))
		}
		seen := len(joined(parent.Err()))
		parent.When(value)
		if errs := joined(parent.Err()); len(errs) > seen {
			return invalid(path, errs[len(errs)-1])
		}
		return nil
	}

	args, err := buildArgs(verb, value)
	if err != nil {
		return invalid(path, err)
	}

	seen := len(joined(parent.Err()))
	step := parent.Do(verb, args)

	if cfg, ok := item[keyConfig]; ok {
		m, ok := cfg.(map[string]any)
		if !ok {
			return invalid(path, fmt.Errorf("%w: config must be a map", ErrMalformedStep))
		}
		step.MergeConfig(m)
	}
	if v, ok := item[keySkip]; ok {
		step.Skip(v)
	}
	if v, ok := item[keyTake]; ok {
		step.Take(v)
	}
	if errs := joined(step.Err()); len(errs) > seen {
		return invalid(path, errs[len(errs)-1])
	}

	_, hasSteps := item[keySteps]
	_, hasEach := item[keyEach]
	if hasSteps && hasEach {
		return invalid(path, fmt.Errorf("%w: use either steps or each", ErrMalformedStep))
	}
	for _, key := range []string{keySteps, keyEach} {
		raw, ok := item[key]
		if !ok {
			continue
		}
		children, err := childItems(raw)
		if err != nil {
			return invalid(path+"."+key, err)
		}
		if err := buildSteps(step, path+"."+key, children); err != nil {
			return err
		}
	}
	return nil
}

// splitVerb находит единственный ключ-глагол элемента.
func splitVerb(item map[string]any) (string, any, error) {
	var verb string
	for k := range item {
		if slices.Contains(reserved, k) {
			continue
		}
		if verb != "" {
			return "", nil, fmt.Errorf("%w: more than one verb (%s, %s)", ErrMalformedStep, verb, k)
		}
		verb = k
	}
	if verb == "" {
		return "", nil, fmt.Errorf("%w: no verb", ErrMalformedStep)
	}
	return verb, item[verb], nil
}

// childItems приводит значение steps/each к списку элементов.
func childItems(raw any) ([]map[string]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of steps", ErrMalformedStep)
	}
	out := make([]map[string]any, 0, len(list))
	for i, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is not a map", ErrMalformedStep, i)
		}
		out = append(out, m)
	}
	return out, nil
}

// joined разворачивает errors.Join в список.
func joined(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

// invalid оборачивает ошибку в ошибку валидации с путём шага.
func invalid(path string, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return domain.NewValidationError(path, "", nil, err)
}
