package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind — категория ошибки при выполнении сценария.
type ErrorKind string

const (
	// KindAuth — ошибка аутентификации или авторизации.
	KindAuth ErrorKind = "auth"

	// KindPagination — ошибка при обходе страниц (невалидный курсор и т.п.).
	KindPagination ErrorKind = "pagination"

	// KindRateLimit — превышен лимит запросов к API.
	KindRateLimit ErrorKind = "rate_limit"

	// KindValidation — невалидные аргументы или контекст шага.
	KindValidation ErrorKind = "validation"

	// KindUnknown — всё остальное.
	KindUnknown ErrorKind = "unknown"
)

// Коды ошибок по умолчанию.
const (
	CodeAuth       = "AUTH_ERROR"
	CodePagination = "PAGINATION_ERROR"
	CodeRateLimit  = "RATE_LIMIT_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeUnknown    = "TROTSKY_ERROR"
)

// Общие ошибки.
var (
	// ErrMissingContext — шагу нужен контекст определённой формы, а его нет.
	ErrMissingContext = errors.New("missing step context")

	// ErrInvalidArgument — аргумент шага имеет неподдерживаемый тип.
	ErrInvalidArgument = errors.New("invalid step argument")
)

// Error — ошибка с категорией и контекстом шага.
type Error struct {
	Kind       ErrorKind      // категория
	Code       string         // машиночитаемый код
	Step       string         // имя шага, где произошла ошибка
	Message    string         // описание
	Details    map[string]any // подробности (для validation)
	RetryAfter time.Duration  // для rate_limit, 0 если неизвестно
	CreatedAt  time.Time      // момент создания
	Err        error          // базовая ошибка
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Step != "" {
		return fmt.Sprintf("%s: step %s: %s", e.Code, e.Step, msg)
	}
	return e.Code + ": " + msg
}

// Unwrap возвращает базовую ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать ошибки по категории: errors.Is(err, &Error{Kind: KindAuth}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind != "" && t.Kind == e.Kind && t.Code == "" && t.Message == ""
}

// WithStep возвращает копию ошибки с заполненным шагом.
func (e *Error) WithStep(step string) *Error {
	cp := *e
	cp.Step = step
	return &cp
}

func newError(kind ErrorKind, code, message string, err error) *Error {
	return &Error{
		Kind:      kind,
		Code:      code,
		Message:   message,
		CreatedAt: time.Now(),
		Err:       err,
	}
}

// NewAuthError создаёт ошибку аутентификации.
func NewAuthError(message string, err error) *Error {
	return newError(KindAuth, CodeAuth, message, err)
}

// NewPaginationError создаёт ошибку пагинации.
func NewPaginationError(message string, err error) *Error {
	return newError(KindPagination, CodePagination, message, err)
}

// NewRateLimitError создаёт ошибку превышения лимита.
func NewRateLimitError(message string, retryAfter time.Duration, err error) *Error {
	e := newError(KindRateLimit, CodeRateLimit, message, err)
	e.RetryAfter = retryAfter
	return e
}

// NewValidationError создаёт ошибку валидации шага.
func NewValidationError(step, message string, details map[string]any, err error) *Error {
	e := newError(KindValidation, CodeValidation, message, err)
	e.Step = step
	e.Details = details
	return e
}

// NewError создаёт ошибку без категории.
func NewError(message string, err error) *Error {
	return newError(KindUnknown, CodeUnknown, message, err)
}

// KindOf возвращает категорию ошибки или KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind проверяет категорию ошибки в цепочке.
func IsKind(err error, kind ErrorKind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
