package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Ошибки формата файла сценария.
var (
	// ErrEmptyScenario — в сценарии нет шагов.
	ErrEmptyScenario = errors.New("scenario has no steps")

	// ErrUnknownVerb — глагол не зарегистрирован.
	ErrUnknownVerb = errors.New("unknown verb")

	// ErrMalformedStep — элемент steps не является map с одним глаголом.
	ErrMalformedStep = errors.New("malformed step")

	// ErrInvalidArgs — аргументы глагола не подходят.
	ErrInvalidArgs = errors.New("invalid verb arguments")
)

// Document — YAML документ сценария.
type Document struct {
	Name     string           `yaml:"name"`
	Schedule string           `yaml:"schedule,omitempty"`
	Config   map[string]any   `yaml:"config,omitempty"`
	Steps    []map[string]any `yaml:"steps"`
}

// Parse читает документ. Неизвестные ключи верхнего уровня — ошибка.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyScenario
		}
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(doc.Steps) == 0 {
		return nil, ErrEmptyScenario
	}
	return &doc, nil
}

// ParseBytes читает документ из памяти.
func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

// ParseFile читает документ из файла. Имя по умолчанию — путь файла.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Name == "" {
		doc.Name = path
	}
	return doc, nil
}
