// Package tui renders live progress for the run command.
//
// The view is read-only: it lists every subtask of the plan with its group,
// step ID and status, and updates as executor events arrive. Ctrl+C cancels
// the run; a second Ctrl+C quits without waiting.
//
// Usage:
//
//	rep, err := tui.RunPlan(ctx, plan, func(ctx context.Context, progress executor.ProgressFunc) (*executor.Report, error) {
//	    exec, err := executor.New(required, executor.WithProgress(progress))
//	    if err != nil {
//	        return nil, err
//	    }
//	    return exec.Run(ctx, plan)
//	})
package tui
