package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/quoteflow/internal/optimizer"
)

var (
	optimizeBudget string
	optimizeRoom   string
	optimizeJSON   bool
	optimizeSave   bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [surfaces-file]",
	Short: "Find the material combination that best fits a budget",
	Long: `Find the material combination with the highest total cost that stays
within the budget. If nothing fits, the cheapest combination is returned and
marked over budget.

The surfaces file is YAML or JSON: a list of
  {position, category, material_type, subtype, variant, area}
or a map from position to the same fields. --room "LxWxH" derives floor,
ceiling and wall surfaces instead.

Examples:
  quoteflow optimize surfaces.yaml --budget "300 triệu"
  quoteflow optimize --room 5x4x3 --budget 50000000`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqArgs := map[string]any{"budget": optimizeBudget}
		switch {
		case len(args) == 1:
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read surfaces: %w", err)
			}
			var surfaces any
			if err := yaml.Unmarshal(data, &surfaces); err != nil {
				return fmt.Errorf("parse surfaces %s: %w", args[0], err)
			}
			reqArgs["surfaces"] = surfaces
		case optimizeRoom != "":
			reqArgs["room_size"] = optimizeRoom
		default:
			return errors.New("give a surfaces file or --room")
		}

		req, err := optimizer.ParseRequest(reqArgs, cfg.Optimizer.Room)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, appOptions{withDB: optimizeSave})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.optimizer().Optimize(cmd.Context(), req)
		if err != nil {
			return err
		}
		if optimizeSave {
			if err := a.db.SaveOptimization(cmd.Context(), res); err != nil {
				return fmt.Errorf("save optimization: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if optimizeJSON {
			return writeJSON(out, res)
		}
		fmt.Fprint(out, renderOptimization(res))
		if optimizeSave {
			fmt.Fprintln(out, dimStyle.Render("saved as "+res.ID))
		}
		return nil
	},
}

func init() {
	optimizeCmd.Flags().StringVarP(&optimizeBudget, "budget", "b", "", `Budget, e.g. "300 triệu", "20,000,000" or "1.5 tỷ"`)
	optimizeCmd.Flags().StringVar(&optimizeRoom, "room", "", `Room size "LxWxH" in meters`)
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "Print the result as JSON")
	optimizeCmd.Flags().BoolVar(&optimizeSave, "save", false, "Save the result to the state database")
	_ = optimizeCmd.MarkFlagRequired("budget")
}
