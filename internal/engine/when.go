package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// When добавляет условие. Если оно ложно, следующие соседи не выполняются.
//
// Условие может быть:
//   - bool, func(*Step) bool, func(context.Context, *Step) (bool, error), <-chan bool
//   - Go template в фигурных скобках: "{{ gt .Context.followersCount 100.0 }}"
//   - выражение expr: "context.followersCount > 100 && config.dry_run == false"
//
// Возвращает шаг, к которому добавлено условие.
func (s *Step) When(pred any) *Step {
	r, err := coercePredicate(pred)
	if err != nil {
		s.fail("when", err)
		return s
	}
	s.scope().appendNode(node{kind: KindWhen, name: "when", pred: r})
	return s
}

// coercePredicate приводит условие к Resolvable[bool].
func coercePredicate(pred any) (Resolvable[bool], error) {
	src, ok := pred.(string)
	if !ok {
		return Coerce[bool](pred)
	}

	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "{{") && strings.HasSuffix(src, "}}") {
		cond := strings.TrimSpace(src[2 : len(src)-2])
		return Resolver(func(_ context.Context, s *Step) (bool, error) {
			return RenderCondition(cond, NewTemplateData(s))
		}), nil
	}

	if err := checkExpr(src); err != nil {
		return Resolvable[bool]{}, err
	}
	return Resolver(func(_ context.Context, s *Step) (bool, error) {
		return EvalCondition(src, NewTemplateData(s))
	}), nil
}

// checkExpr проверяет синтаксис выражения без окружения.
func checkExpr(src string) error {
	if src == "" {
		return nil
	}
	if _, err := expr.Compile(src, expr.AllowUndefinedVariables()); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrExprCompile, src, err)
	}
	return nil
}

// exprEnv строит окружение выражения из данных шаблона.
func exprEnv(data *TemplateData) map[string]any {
	return map[string]any{
		"context": data.Context,
		"output":  data.Output,
		"config":  data.Config,
		"env":     data.Env,
	}
}

// EvalCondition вычисляет выражение expr против шага. Пустое выражение — true.
func EvalCondition(src string, data *TemplateData) (bool, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return true, nil
	}

	env := exprEnv(data)
	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrExprCompile, src, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", src, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("condition %q did not return bool (got %T)", src, out)
	}
	return ok, nil
}
