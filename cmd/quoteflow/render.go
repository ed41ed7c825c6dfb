package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/internal/catalog"
	"github.com/ShayCichocki/quoteflow/internal/executor"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	groupStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// formatMoney renders a VND amount with thousands separators.
func formatMoney(d decimal.Decimal) string {
	return humanize.Comma(d.Round(0).IntPart()) + " ₫"
}

func formatNullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return formatMoney(d.Decimal)
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// renderReport prints every step of rep grouped the way the run executed it.
func renderReport(w io.Writer, plan models.Plan, rep *executor.Report) {
	fmt.Fprintln(w, titleStyle.Render("Run "+rep.RunID))

	for g, group := range rep.Groups {
		label := fmt.Sprintf("Group %d", g)
		if len(group) > 1 {
			label += fmt.Sprintf(" (%d in parallel)", len(group))
		}
		fmt.Fprintln(w, groupStyle.Render(label))

		for _, idx := range group {
			res := rep.Results[idx]
			line := fmt.Sprintf("%s  %s", dimStyle.Render(res.StepID), plan[idx].Text)
			switch {
			case !res.Success:
				printStatus(w, "✗", line, color.FgRed)
				if res.Error != nil {
					fmt.Fprintf(w, "    %s\n", color.RedString("%s: %s", res.Error.Kind, res.Error.Message))
				}
				continue
			case rep.Cached[idx]:
				printStatus(w, "↺", line+dimStyle.Render(" (cached)"), color.FgCyan)
			default:
				printStatus(w, "✓", line, color.FgGreen)
			}
			for _, l := range payloadLines(res) {
				fmt.Fprintf(w, "    %s\n", l)
			}
		}
	}

	s := rep.Summary
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d from cache in %s\n",
		s.Succeeded, s.Failed, s.CacheHits, rep.Duration.Round(time.Millisecond))
}

// payloadLines summarises a successful result.
func payloadLines(res models.TaskResult) []string {
	switch p := res.Payload.(type) {
	case models.OptimizationResult:
		return strings.Split(strings.TrimRight(renderOptimization(p), "\n"), "\n")
	case string:
		return []string{truncateText(p, 160)}
	case nil:
		return nil
	}
	data, err := json.Marshal(res.Payload)
	if err != nil {
		return []string{fmt.Sprintf("%v", res.Payload)}
	}
	return []string{dimStyle.Render(res.ToolName+" → ") + truncateText(string(data), 160)}
}

// renderOptimization formats a budget proposal as a table with a summary box.
func renderOptimization(r models.OptimizationResult) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("Surface", "Material", "Area", "Unit", "Cost")
	for _, a := range r.Assignments {
		t.Row(
			a.Surface.Position,
			strings.Join(a.Variant.Path, " - "),
			fmt.Sprintf("%g m²", a.Surface.Area),
			formatMoney(a.Variant.UnitTotal()),
			formatMoney(a.Cost),
		)
	}

	status := color.GreenString(r.Status.String())
	if r.Status == models.BudgetOver {
		status = color.RedString(r.Status.String())
	}
	summary := fmt.Sprintf("Total %s of %s (%s, remaining %s)\n%d combinations, %s search",
		formatMoney(r.TotalCost), formatMoney(r.Budget), status, formatMoney(r.Remaining()),
		r.Combinations, r.Strategy)

	return t.Render() + "\n" + boxStyle.Render(summary) + "\n"
}

// renderPriceRange formats the price spread under a catalog node.
func renderPriceRange(r catalog.PriceRange) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("", "Min", "Max").
		Row("Material", formatNullMoney(r.MaterialMin), formatNullMoney(r.MaterialMax)).
		Row("Labor", formatNullMoney(r.LaborMin), formatNullMoney(r.LaborMax)).
		Row("Total", formatNullMoney(r.CombinedMin), formatNullMoney(r.CombinedMax))
	return t.Render() + "\n"
}

// renderVariants formats catalog variants with their unit prices.
func renderVariants(vs []models.CatalogVariant) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("Material", "Vật tư", "Nhân công", "Total")
	for _, v := range vs {
		t.Row(strings.Join(v.Path, " - "), formatMoney(v.UnitMaterial), formatMoney(v.UnitLabor), formatMoney(v.UnitTotal()))
	}
	return t.Render() + "\n"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
