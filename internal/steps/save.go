package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StepTypeSave — тип шага сохранения контекста.
	StepTypeSave = "save"

	// ArgPath — путь к файлу.
	ArgPath = "path"
)

// SaveStep записывает контекст шага в JSON файл.
//
// Аргументы:
//
//	{"path": "followers"}  // расширение .json добавляется, если его нет
//
// Output: {"path": "followers.json"}
type SaveStep struct{}

// NewSaveStep создаёт новый SaveStep.
func NewSaveStep() *SaveStep {
	return &SaveStep{}
}

// Type возвращает тип шага.
func (s *SaveStep) Type() string {
	return StepTypeSave
}

// Execute пишет файл.
func (s *SaveStep) Execute(ctx context.Context, req *Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	default:
	}

	path := JSONPath(GetConfigString(req.Args, ArgPath))
	if path == ".json" {
		return nil, fmt.Errorf("%w: %s: path is required", ErrInvalidConfig, StepTypeSave)
	}

	data, err := json.MarshalIndent(req.Context, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	return NewResponse(map[string]any{"path": path}), nil
}

// JSONPath добавляет расширение .json, если его нет.
func JSONPath(path string) string {
	if strings.HasSuffix(path, ".json") {
		return path
	}
	return path + ".json"
}
