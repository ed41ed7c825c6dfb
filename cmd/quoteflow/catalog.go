package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

var (
	catalogSearch string
	catalogJSON   bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [path...]",
	Short: "Browse the price catalog",
	Long: `Browse the price catalog.

Without arguments, lists the categories. With a path, shows the children,
price range and variants under it. The path can be given as separate
arguments or as one "Sàn - Sàn gỗ" string.

Examples:
  quoteflow catalog
  quoteflow catalog "Sàn - Sàn gỗ"
  quoteflow catalog --search "công nghiệp"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		tree := a.tree()
		out := cmd.OutOrStdout()

		if catalogSearch != "" {
			found := tree.Search(catalogSearch)
			if catalogJSON {
				return writeJSON(out, found)
			}
			if len(found) == 0 {
				fmt.Fprintf(out, "No materials match %q\n", catalogSearch)
				return nil
			}
			fmt.Fprint(out, renderVariants(found))
			return nil
		}

		path := catalogPath(args)
		if len(path) == 0 {
			cats := tree.Categories()
			if catalogJSON {
				return writeJSON(out, cats)
			}
			fmt.Fprintln(out, titleStyle.Render("Categories"))
			for _, c := range cats {
				fmt.Fprintf(out, "  %s\n", c)
			}
			return nil
		}

		node, err := tree.Lookup(path)
		if err != nil {
			return err
		}
		if node.IsLeaf() {
			if catalogJSON {
				return writeJSON(out, node.Leaf)
			}
			fmt.Fprint(out, renderVariants([]models.CatalogVariant{*node.Leaf}))
			return nil
		}

		pr, err := tree.PriceRange(path)
		if err != nil {
			return err
		}
		variants, err := tree.Variants(path)
		if err != nil {
			return err
		}
		if catalogJSON {
			return writeJSON(out, map[string]any{"node": node, "price_range": pr, "variants": variants})
		}

		fmt.Fprintln(out, titleStyle.Render(strings.Join(path, " - ")))
		if len(node.Children) > 0 {
			fmt.Fprintln(out, dimStyle.Render("children: "+strings.Join(node.Children, ", ")))
		}
		fmt.Fprint(out, renderPriceRange(pr))
		fmt.Fprint(out, renderVariants(variants))
		return nil
	},
}

// catalogPath accepts "A - B" as one argument or A B as several.
func catalogPath(args []string) []string {
	if len(args) == 1 && strings.Contains(args[0], " - ") {
		args = strings.Split(args[0], " - ")
	}
	var path []string
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			path = append(path, a)
		}
	}
	return path
}

func init() {
	catalogCmd.Flags().StringVar(&catalogSearch, "search", "", "Search variant and subtype names")
	catalogCmd.Flags().BoolVar(&catalogJSON, "json", false, "Print as JSON")
}
