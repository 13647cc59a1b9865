package repo

import "errors"

// ErrNotFound — запуска с таким id нет в scenario_runs.
var ErrNotFound = errors.New("run not found")
