package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/internal/tui"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

var (
	runSubtasks []string
	runJSON     bool
	runTUI      bool
	runNoSave   bool
)

var runCmd = &cobra.Command{
	Use:   "run [plan-file]",
	Short: "Execute a plan of pricing subtasks",
	Long: `Execute a plan of pricing subtasks.

The plan is a text file with one subtask per line ("-" reads stdin), or a
YAML/JSON list. Subtasks can also be passed with --subtask.

Subtasks are grouped by their references to earlier steps. Each group runs
concurrently; a group starts only after the previous one has settled.
Successful quotes and budget proposals are saved to the state database
unless --no-save is given.

Examples:
  quoteflow run plan.txt
  quoteflow run -s "Tra cứu giá nội bộ cho Sàn - Sàn gỗ" -s "So sánh kết quả bước 1 với trần"
  quoteflow run plan.yaml --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runSubtasks, "subtask", "s", nil, "Subtask text (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the report as JSON")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show live progress")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not persist results")
}

func loadPlanArgs(cmd *cobra.Command, args []string, subtasks []string) (models.Plan, error) {
	if len(args) == 1 {
		return readPlan(args[0], cmd.InOrStdin())
	}
	if len(subtasks) == 0 {
		return nil, errors.New("give a plan file or at least one --subtask")
	}
	return newPlan(cleanTexts(subtasks))
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := loadPlanArgs(cmd, args, runSubtasks)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{withDB: !runNoSave})
	if err != nil {
		return err
	}
	defer a.Close()

	var (
		rep    *executor.Report
		runErr error
	)
	if runTUI && !runJSON {
		rep, runErr = tui.RunPlan(ctx, plan, func(ctx context.Context, progress executor.ProgressFunc) (*executor.Report, error) {
			exec, err := a.executor(executor.WithProgress(progress))
			if err != nil {
				return nil, err
			}
			return exec.Run(ctx, plan)
		})
	} else {
		exec, err := a.executor()
		if err != nil {
			return err
		}
		rep, runErr = exec.Run(ctx, plan)
	}
	if rep == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if runJSON {
		if err := writeJSON(out, rep); err != nil {
			return err
		}
	} else {
		renderReport(out, plan, rep)
		if a.client != nil {
			in, outTok := a.client.Tracker().Total()
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d model calls, %d input / %d output tokens, ~$%.4f",
				a.client.Tracker().Calls(), in, outTok, a.client.Tracker().Cost())))
		}
	}

	if runErr != nil {
		return runErr
	}
	if rep.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d subtasks failed", rep.Summary.Failed, len(plan))
	}
	return nil
}
