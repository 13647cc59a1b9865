package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pirhoo/trotsky-sub000/internal/scenario"
)

// ValidateResult — итог проверки одного файла.
type ValidateResult struct {
	File     string `json:"file"`
	Name     string `json:"name,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	Steps    int    `json:"steps"`
	Error    string `json:"error,omitempty"`
}

// NewValidateCmd создаёт команду `validate FILE...`.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check scenario files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			results := make([]ValidateResult, 0, len(args))
			var failed int
			for _, file := range args {
				res := validateFile(file)
				if res.Error != "" {
					failed++
				}
				results = append(results, res)
			}

			headers := []string{"FILE", "NAME", "SCHEDULE", "STEPS", "ERROR"}
			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.File, r.Name, r.Schedule, strconv.Itoa(r.Steps), r.Error}
			}
			out.Print(headers, rows, results)

			if failed > 0 {
				return fmt.Errorf("%d of %d scenario files are invalid", failed, len(args))
			}
			return nil
		},
	}
}

func validateFile(file string) ValidateResult {
	res := ValidateResult{File: file}

	doc, err := scenario.ParseFile(file)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Name = doc.Name
	res.Schedule = doc.Schedule

	root, err := scenario.Build(doc, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Steps = len(root.Flatten())
	return res
}
