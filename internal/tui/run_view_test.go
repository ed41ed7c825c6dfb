package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

func testPlan() models.Plan {
	return models.NewPlan([]string{"price flooring", "price ceiling", "compare step 1 and step 2"})
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestRunView_AppliesEvents(t *testing.T) {
	v := NewRunView(testPlan(), nil)

	ok := models.TaskResult{Subtask: "price flooring", ToolName: "get_internal_price", Success: true, Payload: "quote"}
	failed := models.Failed("price ceiling", models.ErrorKindUnknownTool, "no tool named x")

	msgs := []tea.Msg{
		EventMsg{Kind: executor.EventRunStarted, RunID: "run-1", Groups: []models.Group{{0, 1}, {2}}},
		EventMsg{Kind: executor.EventStepStarted, Index: 0, StepID: "group_0_step_0"},
		EventMsg{Kind: executor.EventStepStarted, Index: 1, StepID: "group_0_step_1"},
		EventMsg{Kind: executor.EventStepFinished, Index: 0, StepID: "group_0_step_0", Result: &ok},
		EventMsg{Kind: executor.EventStepFinished, Index: 1, StepID: "group_0_step_1", Result: &failed},
		EventMsg{Kind: executor.EventStepStarted, Index: 2, Group: 1, StepID: "group_1"},
		EventMsg{Kind: executor.EventStepFinished, Index: 2, Group: 1, StepID: "group_1", Result: &ok, Cached: true},
	}
	for _, msg := range msgs {
		if _, cmd := v.Update(msg); cmd != nil {
			t.Fatalf("Update(%T) returned a command", msg)
		}
	}

	tests := []struct {
		idx  int
		want StepState
	}{
		{0, StepDone},
		{1, StepFailed},
		{2, StepCached},
		{7, StepPending},
	}
	for _, tt := range tests {
		if got := v.State(tt.idx); got != tt.want {
			t.Errorf("State(%d) = %v, want %v", tt.idx, got, tt.want)
		}
	}

	view := v.View()
	for _, want := range []string{"run-1", "group 0", "group 1", "price flooring", "unknown_tool", "(cached)"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestRunView_CtrlCCancelsThenQuits(t *testing.T) {
	canceled := false
	v := NewRunView(testPlan(), func() { canceled = true })

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !canceled {
		t.Error("first Ctrl+C should cancel the run")
	}
	if isQuit(cmd) {
		t.Error("first Ctrl+C should wait for the run to stop")
	}
	if !strings.Contains(v.View(), "canceling") {
		t.Error("view should show the run is canceling")
	}

	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !isQuit(cmd) {
		t.Error("second Ctrl+C should quit")
	}
}

func TestRunView_DoneQuits(t *testing.T) {
	v := NewRunView(testPlan(), nil)

	rep := &executor.Report{Summary: executor.Summary{Succeeded: 2, Failed: 1}}
	_, cmd := v.Update(DoneMsg{Report: rep})
	if !isQuit(cmd) {
		t.Fatal("DoneMsg should quit")
	}
	if !strings.Contains(v.View(), "2 succeeded, 1 failed") {
		t.Errorf("View() = %q, want summary", v.View())
	}

	v = NewRunView(testPlan(), nil)
	v.Update(DoneMsg{Err: errors.New("run aborted")})
	if !strings.Contains(v.View(), "run stopped: run aborted") {
		t.Errorf("View() = %q, want error footer", v.View())
	}
}

func TestRunPlan(t *testing.T) {
	plan := testPlan()
	want := &executor.Report{RunID: "run-2"}

	var events int
	rep, err := RunPlan(context.Background(), plan, func(ctx context.Context, progress executor.ProgressFunc) (*executor.Report, error) {
		progress(executor.Event{Kind: executor.EventRunStarted, RunID: "run-2", Groups: []models.Group{{0, 1, 2}}})
		events++
		return want, nil
	}, tea.WithInput(nil), tea.WithoutRenderer())
	if err != nil {
		t.Fatalf("RunPlan() error = %v", err)
	}
	if rep != want {
		t.Errorf("RunPlan() report = %v, want %v", rep, want)
	}
	if events != 1 {
		t.Errorf("run called %d times, want 1", events)
	}
}
