package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/internal/grouper"
)

var (
	groupSubtasks []string
	groupJSON     bool
)

var groupCmd = &cobra.Command{
	Use:   "group [plan-file]",
	Short: "Show how a plan would be grouped",
	Long: `Show the dependency groups of a plan without executing it.

Subtasks that refer to earlier results start a new group; consecutive
independent subtasks share one group and would run concurrently.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := loadPlanArgs(cmd, args, groupSubtasks)
		if err != nil {
			return err
		}

		classifier := grouper.DefaultClassifier()
		groups := grouper.GroupPlan(plan, classifier)

		out := cmd.OutOrStdout()
		if groupJSON {
			return writeJSON(out, groups)
		}

		for g, group := range groups {
			fmt.Fprintln(out, groupStyle.Render(fmt.Sprintf("Group %d", g)))
			for k, idx := range group {
				sig := classifier.Classify(idx, plan[idx].Text)
				line := fmt.Sprintf("  %-16s %s", executor.StepID(g, k, len(group)), plan[idx].Text)
				if sig.Dependent {
					line += dimStyle.Render(fmt.Sprintf("  [%s: %q]", sig.Kind, sig.Matched))
				}
				fmt.Fprintln(out, line)
			}
		}
		return nil
	},
}

func init() {
	groupCmd.Flags().StringArrayVarP(&groupSubtasks, "subtask", "s", nil, "Subtask text (repeatable)")
	groupCmd.Flags().BoolVar(&groupJSON, "json", false, "Print groups as JSON")
}
