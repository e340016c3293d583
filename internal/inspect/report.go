// Package inspect renders scenario runs for the terminal.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattjoyce/capinvoke/internal/trace"
)

// RunGetter loads one recorded run.
type RunGetter interface {
	GetRun(ctx context.Context, id string) (*trace.Run, error)
}

// Render writes a step table for run followed by a totals line.
func Render(w io.Writer, run trace.Run) {
	name := run.Scenario
	if run.ScenarioHash != "" {
		name = fmt.Sprintf("%s (%s)", name, shortHash(run.ScenarioHash))
	}
	fmt.Fprintf(w, "scenario %s\n", name)
	if run.ID != "" {
		fmt.Fprintf(w, "run id   %s\n", run.ID)
	}
	fmt.Fprintf(w, "kernel   cores=%d max_irq=%d\n\n", run.Cores, run.MaxIRQ)

	for _, st := range run.Steps {
		fmt.Fprintf(w, "%3d  core=%d  %-11s %-8s cptr=%-#6x %-22s %s\n",
			st.Seq, st.Core, st.Op, st.Thread, st.CPtr, st.Label, st.Result)
		fmt.Fprintf(w, "     state=%s badge=%#x mrs=%v\n", st.State, st.Badge, st.MRs)
		if st.Fault != "" {
			fmt.Fprintf(w, "     fault: %s\n", st.Fault)
		}
	}
	fmt.Fprintf(w, "\n%d steps, %d errors\n", run.StepCount, run.ErrorCount)
}

// BuildReport renders the recorded run id.
func BuildReport(ctx context.Context, store RunGetter, id string) (string, error) {
	run, err := lookup(ctx, store, id)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	Render(&out, *run)
	return out.String(), nil
}

// BuildJSONReport returns the recorded run id as indented JSON.
func BuildJSONReport(ctx context.Context, store RunGetter, id string) (string, error) {
	run, err := lookup(ctx, store, id)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

func lookup(ctx context.Context, store RunGetter, id string) (*trace.Run, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return run, nil
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
