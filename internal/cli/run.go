package cli

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
	"github.com/pirhoo/trotsky-sub000/internal/engine"
	"github.com/pirhoo/trotsky-sub000/internal/scenario"
)

// DepsFunc открывает зависимости после парсинга флагов.
type DepsFunc func(ctx context.Context) (*Deps, error)

// NewRunCmd создаёт команду `run FILE`.
func NewRunCmd(depsFn DepsFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE",
		Short: "Run a scenario file once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			doc, err := scenario.ParseFile(args[0])
			if err != nil {
				return err
			}

			deps, err := depsFn(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			root, err := scenario.Build(doc, deps.Agent)
			if err != nil {
				return err
			}

			rec := &stepRecorder{}
			root.Use(rec)

			run := domain.NewRun(root.ScenarioName())
			runErr := deps.Execute(ctx, run, root)

			outputFn().PrintRun(RunReport{Run: run, Steps: rec.reports()})
			return runErr
		},
	}
}

// stepRecorder собирает отчёт о шагах для вывода.
type stepRecorder struct {
	mu    sync.Mutex
	steps []StepReport
}

func (r *stepRecorder) BeforeStep(context.Context, *engine.Step, any) error {
	return nil
}

func (r *stepRecorder) AfterStep(_ context.Context, s *engine.Step, _ any, res engine.StepResult) error {
	if s.IsRoot() {
		return nil
	}
	rep := StepReport{
		Path:       s.String(),
		Status:     domain.StatusOf(res.Success),
		DurationMs: res.ExecutionTime.Milliseconds(),
	}
	if res.Err != nil {
		rep.Error = res.Err.Error()
	}

	r.mu.Lock()
	r.steps = append(r.steps, rep)
	r.mu.Unlock()
	return nil
}

func (r *stepRecorder) reports() []StepReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StepReport(nil), r.steps...)
}
