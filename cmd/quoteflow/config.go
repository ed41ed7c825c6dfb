package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quoteflow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify quoteflow configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/quoteflow/config.yaml
Project-specific overrides can be placed in .quoteflow.yaml
Environment variables override both, e.g. QUOTEFLOW_EXECUTOR_MAX_PARALLEL=4`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return displayAllConfig(cmd, cfg)
		case 1:
			value, err := displayValue(cfg, strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			key := strings.ToLower(args[0])
			if _, err := config.Set(key, args[1]); err != nil {
				return err
			}
			printStatus(out, "✓", fmt.Sprintf("Set %s = %s", key, args[1]), color.FgGreen)
			return nil
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	for _, key := range config.Keys() {
		value, err := displayValue(cfg, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", key, value)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, dimStyle.Render("user config: "+config.GetUserConfigPath()))
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Fprintln(out, dimStyle.Render("project config: "+p))
	}
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("api key source: %s", config.GetAPIKeySource(cfg))))
	return nil
}

// displayValue returns a key's value with the API key masked.
func displayValue(cfg *config.Config, key string) (string, error) {
	if key == "anthropic.api_key" {
		k, err := config.GetAPIKey(cfg)
		if err != nil {
			return config.MaskAPIKey(""), nil
		}
		return config.MaskAPIKey(k), nil
	}
	return config.Get(cfg, key)
}
