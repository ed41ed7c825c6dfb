package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// RunFunc starts a run that reports through progress.
type RunFunc func(ctx context.Context, progress executor.ProgressFunc) (*executor.Report, error)

// RunPlan shows a RunView while run executes and returns its report once
// both the run and the program have finished.
func RunPlan(ctx context.Context, plan models.Plan, run RunFunc, opts ...tea.ProgramOption) (*executor.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewRunView(plan, cancel), opts...)

	doneCh := make(chan DoneMsg, 1)
	go func() {
		rep, err := run(ctx, func(ev executor.Event) { p.Send(EventMsg(ev)) })
		msg := DoneMsg{Report: rep, Err: err}
		doneCh <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-doneCh
		return nil, err
	}

	// A forced quit may leave the run winding down.
	cancel()
	msg := <-doneCh
	return msg.Report, msg.Err
}
