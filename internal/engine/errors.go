package engine

import (
	"errors"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Ошибки выполнения дерева шагов.
var (
	// ErrNotImplemented — у шага нет реализации apply.
	ErrNotImplemented = errors.New("step apply not implemented")

	// ErrNoSource — стриму не задан источник сообщений.
	ErrNoSource = errors.New("stream step has no source")

	// ErrUnresolved — значение не удалось вычислить.
	ErrUnresolved = errors.New("value could not be resolved")
)

// Ошибки построения сценария. Копятся в дереве и возвращаются из Run.
var (
	// ErrInvalidArgument — аргумент fluent-метода неподдерживаемого типа.
	ErrInvalidArgument = domain.ErrInvalidArgument

	// ErrNotIterable — Each/Skip/Take вызван не на списке или стриме.
	ErrNotIterable = errors.New("step is not a list or stream")

	// ErrCyclicPush — шаг нельзя сделать потомком самого себя.
	ErrCyclicPush = errors.New("step cannot be pushed under itself")

	// ErrInvalidSchedule — невалидное cron-выражение.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrExprCompile — ошибка компиляции выражения when.
	ErrExprCompile = errors.New("expression compile failed")
)

// buildError оборачивает ошибку построения в ошибку валидации шага.
func buildError(step, message string, err error) *domain.Error {
	return domain.NewValidationError(step, message, nil, err)
}
