package agent

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Ошибки клиента.
var (
	// ErrNotLoggedIn — запрос требует сессии, а Login не вызывался.
	ErrNotLoggedIn = errors.New("agent is not logged in")

	// ErrEmptyNSID — не указан метод XRPC.
	ErrEmptyNSID = errors.New("empty xrpc method")
)

// XRPCError — ошибка XRPC запроса.
type XRPCError struct {
	StatusCode int
	Status     string
	Name       string // поле "error" из тела ответа
	Message    string // поле "message" из тела ответа
}

// Error реализует интерфейс error.
func (e *XRPCError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("XRPC %d %s: %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("XRPC %d: %s", e.StatusCode, e.Status)
}

// IsXRPCError проверяет, является ли ошибка ошибкой XRPC.
func IsXRPCError(err error) bool {
	var e *XRPCError
	return errors.As(err, &e)
}

// classify переводит ответ с ошибкой в категорию.
//
//	401, 403          → auth
//	429               → rate_limit (с retry-after)
//	400 *Cursor*      → pagination
//	400               → validation
//	остальное         → unknown
func classify(xerr *XRPCError, header http.Header, now time.Time) *domain.Error {
	switch {
	case xerr.StatusCode == http.StatusUnauthorized || xerr.StatusCode == http.StatusForbidden:
		return domain.NewAuthError(xerr.Message, xerr)
	case xerr.StatusCode == http.StatusTooManyRequests:
		return domain.NewRateLimitError(xerr.Message, retryAfter(header, now), xerr)
	case xerr.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(xerr.Name+xerr.Message), "cursor"):
		return domain.NewPaginationError(xerr.Message, xerr)
	case xerr.StatusCode == http.StatusBadRequest:
		e := domain.NewValidationError("", xerr.Message, map[string]any{"error": xerr.Name}, xerr)
		return e
	default:
		return domain.NewError(xerr.Status, xerr)
	}
}

// retryAfter читает Retry-After (секунды) или ratelimit-reset (unix время).
func retryAfter(header http.Header, now time.Time) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
	}
	if v := header.Get("RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(ts, 0).Sub(now); d > 0 {
				return d
			}
		}
	}
	return 0
}
