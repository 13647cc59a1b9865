package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pirhoo/trotsky-sub000/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return newOutput(jsonMode, os.Stdout, os.Stderr)
}

func newOutput(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// RunReport — итог `trotsky run` для --json.
type RunReport struct {
	Run   *domain.Run  `json:"run"`
	Steps []StepReport `json:"steps"`
}

// StepReport — одна строка отчёта о шаге.
type StepReport struct {
	Path       string           `json:"path"`
	Status     domain.RunStatus `json:"status"`
	DurationMs int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
}

// PrintRun выводит отчёт о запуске.
func (o *Output) PrintRun(report RunReport) {
	headers := []string{"STEP", "STATUS", "DURATION", "ERROR"}
	rows := make([][]string, len(report.Steps))
	for i, s := range report.Steps {
		rows[i] = []string{s.Path, string(s.Status), formatMs(s.DurationMs), truncate(s.Error, 60)}
	}
	o.Print(headers, rows, report)

	if !o.jsonMode {
		o.Success(fmt.Sprintf("run %s %s in %s", report.Run.ID, report.Run.Status, report.Run.Duration().Round(time.Millisecond)))
	}
}

func formatMs(ms int64) string {
	return strconv.FormatInt(ms, 10) + "ms"
}

// truncate обрезает строку до n символов.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
