package steps

import (
	"context"
	"fmt"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// FetchFunc загружает одну страницу начиная с cursor ("" — первая страница).
type FetchFunc func(ctx context.Context, cursor string) (map[string]any, error)

// Unbounded — значение take без ограничения.
const Unbounded = -1

// Paginate обходит страницы и возвращает окно [skip, skip+take).
//
// Страницы загружаются, пока есть курсор и накоплено меньше skip+take элементов,
// поэтому лишних запросов не бывает. take < 0 означает "все элементы".
func Paginate(ctx context.Context, field string, fetch FetchFunc, skip, take int) ([]any, error) {
	if skip < 0 {
		skip = 0
	}
	target := -1
	if take >= 0 {
		target = skip + take
	}

	var (
		acc    []any
		cursor string
	)
	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}

		raw, ok := page[field]
		if ok && raw != nil {
			items, ok := raw.([]any)
			if !ok {
				return nil, domain.NewPaginationError(fmt.Sprintf("field %q is %T, not an array", field, raw), nil)
			}
			acc = append(acc, items...)
		}

		next, _ := page["cursor"].(string)
		if next == "" || next == cursor {
			break
		}
		cursor = next
		if target >= 0 && len(acc) >= target {
			break
		}
	}

	if skip >= len(acc) {
		return []any{}, nil
	}
	end := len(acc)
	if target >= 0 && target < end {
		end = target
	}
	return acc[skip:end], nil
}
