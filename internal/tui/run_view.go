package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// StepState is the display state of one subtask.
type StepState int

const (
	StepPending StepState = iota
	StepRunning
	StepDone
	StepCached
	StepFailed
)

// EventMsg carries an executor event into the program.
type EventMsg executor.Event

// DoneMsg is sent when the run returns.
type DoneMsg struct {
	Report *executor.Report
	Err    error
}

type stepRow struct {
	text   string
	group  int
	stepID string
	state  StepState
	detail string
}

// RunView displays per-step progress of one run.
type RunView struct {
	steps    []stepRow
	runID    string
	spinner  spinner.Model
	width    int
	cancel   context.CancelFunc
	stopping bool
	done     bool
	err      error
	summary  *executor.Summary

	headerStyle  lipgloss.Style
	groupStyle   lipgloss.Style
	pendingStyle lipgloss.Style
	runningStyle lipgloss.Style
	doneStyle    lipgloss.Style
	cachedStyle  lipgloss.Style
	failedStyle  lipgloss.Style
	footerStyle  lipgloss.Style
}

// NewRunView creates a view for plan. cancel, if set, is called on the first
// Ctrl+C.
func NewRunView(plan models.Plan, cancel context.CancelFunc) *RunView {
	steps := make([]stepRow, len(plan))
	for i, st := range plan {
		steps[i] = stepRow{text: st.Text, group: -1}
	}

	return &RunView{
		steps:   steps,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:   80,
		cancel:  cancel,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		groupStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")), // Dark green

		cachedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true),

		failedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red

		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1),
	}
}

// Init starts the spinner.
func (v *RunView) Init() tea.Cmd {
	return v.spinner.Tick
}

// Update handles events, key presses and spinner ticks.
func (v *RunView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if v.stopping || v.done {
				return v, tea.Quit
			}
			v.stopping = true
			if v.cancel != nil {
				v.cancel()
			}
		}
	case tea.WindowSizeMsg:
		v.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	case EventMsg:
		v.apply(executor.Event(msg))
	case DoneMsg:
		v.done = true
		v.err = msg.Err
		if msg.Report != nil {
			v.summary = &msg.Report.Summary
		}
		return v, tea.Quit
	}
	return v, nil
}

func (v *RunView) apply(ev executor.Event) {
	switch ev.Kind {
	case executor.EventRunStarted:
		v.runID = ev.RunID
		for g, group := range ev.Groups {
			for _, idx := range group {
				if idx < len(v.steps) {
					v.steps[idx].group = g
				}
			}
		}
	case executor.EventStepStarted:
		if row := v.row(ev.Index); row != nil {
			row.state = StepRunning
			row.stepID = ev.StepID
			row.group = ev.Group
		}
	case executor.EventStepFinished:
		row := v.row(ev.Index)
		if row == nil || ev.Result == nil {
			return
		}
		row.stepID = ev.StepID
		switch {
		case !ev.Result.Success:
			row.state = StepFailed
			if ev.Result.Error != nil {
				row.detail = fmt.Sprintf("%s: %s", ev.Result.Error.Kind, ev.Result.Error.Message)
			}
		case ev.Cached:
			row.state = StepCached
			row.detail = ev.Result.ToolName + " (cached)"
		default:
			row.state = StepDone
			row.detail = ev.Result.ToolName
		}
	case executor.EventRunFinished:
		v.summary = ev.Summary
	}
}

func (v *RunView) row(idx int) *stepRow {
	if idx < 0 || idx >= len(v.steps) {
		return nil
	}
	return &v.steps[idx]
}

// State returns the display state of the subtask at plan index idx.
func (v *RunView) State(idx int) StepState {
	if row := v.row(idx); row != nil {
		return row.state
	}
	return StepPending
}

// View renders the step list.
func (v *RunView) View() string {
	var b strings.Builder

	title := "quoteflow run"
	if v.runID != "" {
		title += " " + v.runID
	}
	b.WriteString(v.headerStyle.Render(title))
	b.WriteString("\n")

	lastGroup := -2
	for _, row := range v.steps {
		if row.group != lastGroup {
			label := "ungrouped"
			if row.group >= 0 {
				label = fmt.Sprintf("group %d", row.group)
			}
			b.WriteString(v.groupStyle.Render(label))
			b.WriteString("\n")
			lastGroup = row.group
		}
		b.WriteString("  ")
		b.WriteString(v.renderRow(row))
		b.WriteString("\n")
	}

	b.WriteString(v.footerStyle.Render(v.footer()))
	b.WriteString("\n")
	return b.String()
}

func (v *RunView) renderRow(row stepRow) string {
	text := truncate(row.text, v.width-30)
	switch row.state {
	case StepRunning:
		return v.runningStyle.Render(v.spinner.View() + " " + text)
	case StepDone:
		return v.doneStyle.Render("✓ "+text) + "  " + v.pendingStyle.Render(row.detail)
	case StepCached:
		return v.cachedStyle.Render("↺ " + text + "  " + row.detail)
	case StepFailed:
		return v.failedStyle.Render("✗ " + text + "  " + truncate(row.detail, v.width/2))
	default:
		return v.pendingStyle.Render("○ " + text)
	}
}

func (v *RunView) footer() string {
	switch {
	case v.done && v.err != nil:
		return "run stopped: " + v.err.Error()
	case v.summary != nil:
		return fmt.Sprintf("%d succeeded, %d failed, %d cached", v.summary.Succeeded, v.summary.Failed, v.summary.CacheHits)
	case v.stopping:
		return "canceling... (ctrl+c again to quit)"
	default:
		return "ctrl+c to cancel"
	}
}

func truncate(s string, n int) string {
	if n < 10 {
		n = 10
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
