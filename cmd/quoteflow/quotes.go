package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quoteflow/internal/state"
)

var (
	quotesPurge         time.Duration
	quotesPurgeAll      bool
	quotesProject       string
	quotesOptimizations bool
	quotesLimit         int
	quotesJSON          bool
)

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "List or purge saved quotes",
	Long: `List the quotes saved by earlier runs.

  --project NAME      list quotes saved for a project with save_quote
  --optimizations     list saved budget proposals
  --purge 720h        delete cached quotes older than the duration
  --purge-all         delete every cached quote`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		switch {
		case quotesPurgeAll || quotesPurge > 0:
			n, err := db.PurgeQuotes(ctx, quotesPurge)
			if err != nil {
				return err
			}
			printStatus(out, "✓", fmt.Sprintf("Purged %d cached quote(s)", n), color.FgGreen)
			return nil

		case quotesProject != "":
			saved, err := db.ListProjectQuotes(ctx, quotesProject)
			if err != nil {
				return err
			}
			if quotesJSON {
				return writeJSON(out, saved)
			}
			if len(saved) == 0 {
				fmt.Fprintf(out, "No quotes saved for project %q\n", quotesProject)
				return nil
			}
			for _, q := range saved {
				fmt.Fprintf(out, "%s %s\n%s\n\n", dimStyle.Render(fmt.Sprintf("#%d", q.ID)),
					dimStyle.Render(humanize.Time(q.CreatedAt)), q.Content)
			}
			return nil

		case quotesOptimizations:
			opts, err := db.ListOptimizations(ctx, quotesLimit)
			if err != nil {
				return err
			}
			if quotesJSON {
				return writeJSON(out, opts)
			}
			for _, o := range opts {
				fmt.Fprintln(out, titleStyle.Render(o.ID))
				fmt.Fprint(out, renderOptimization(o))
			}
			return nil
		}

		return listCachedQuotes(cmd, db)
	},
}

func listCachedQuotes(cmd *cobra.Command, db *state.DB) error {
	quotes, err := db.ListQuotes(cmd.Context())
	if err != nil {
		return err
	}
	if quotesLimit > 0 && len(quotes) > quotesLimit {
		quotes = quotes[:quotesLimit]
	}

	out := cmd.OutOrStdout()
	if quotesJSON {
		return writeJSON(out, quotes)
	}
	if len(quotes) == 0 {
		fmt.Fprintln(out, "No cached quotes. Run 'quoteflow run <plan>' to create some.")
		return nil
	}
	for _, q := range quotes {
		line := fmt.Sprintf("%s  %s", q.Subtask, dimStyle.Render(q.ToolName+", "+humanize.Time(q.CompletedAt)))
		if q.Success {
			printStatus(out, "✓", line, color.FgGreen)
		} else {
			printStatus(out, "✗", line, color.FgRed)
		}
	}
	return nil
}

func init() {
	quotesCmd.Flags().DurationVar(&quotesPurge, "purge", 0, "Delete cached quotes older than this duration")
	quotesCmd.Flags().BoolVar(&quotesPurgeAll, "purge-all", false, "Delete every cached quote")
	quotesCmd.Flags().StringVar(&quotesProject, "project", "", "List quotes saved for a project")
	quotesCmd.Flags().BoolVar(&quotesOptimizations, "optimizations", false, "List saved budget proposals")
	quotesCmd.Flags().IntVar(&quotesLimit, "limit", 20, "Maximum entries to list (0 for all)")
	quotesCmd.Flags().BoolVar(&quotesJSON, "json", false, "Print as JSON")
}
