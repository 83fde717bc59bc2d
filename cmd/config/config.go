// Package config provides CLI commands for configuration management.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/config"
	"github.com/klytics/smartsheet/internal/output"
)

// NewCommand returns the config command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage smartsheet configuration",
		Long:  "Interactive setup, view, and modify smartsheet settings stored in " + config.ConfigPath() + ".",
	}

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newResetCommand())
	cmd.AddCommand(newPathCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newPolicyCommand())

	return cmd
}

func load() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	return cfg, nil
}

func jsonFlag(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := load(); err != nil {
				return err
			}
			return config.Wizard(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			policy, err := config.LoadPolicy()
			if err != nil {
				return err
			}
			policy.Apply(cfg)

			if jsonFlag(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), cmd.CommandPath(), map[string]any{
					"path":        config.ConfigPath(),
					"provider":    cfg.Provider,
					"model":       cfg.Model,
					"endpoint":    ai.Endpoint(cfg.AISettings()),
					"keySet":      cfg.APIKey() != "",
					"concurrency": cfg.Concurrency,
					"timeout":     cfg.Timeout.String(),
					"maxTokens":   cfg.MaxTokens,
					"outputDir":   cfg.Output.Dir,
					"policy":      policy != nil,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), config.ShowConfig(cfg))
			if policy != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nPolicy: %s\n", config.PolicyPath())
			}
			return nil
		},
	}
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := load(); err != nil {
				return err
			}
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := load(); err != nil {
				return err
			}
			val := config.Get(args[0])
			if val == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: (not set)\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], val)
			}
			return nil
		},
	}
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ResetConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults")
			return nil
		},
	}
}

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.ConfigPath())
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			issues := config.Validate(cfg)

			var errs []string
			warnings := 0
			for _, issue := range issues {
				switch issue.Severity {
				case "error":
					errs = append(errs, issue.Message)
				case "warning":
					warnings++
				}
			}

			// Under --json a failed validation is reported once, by the error envelope.
			if len(errs) > 0 {
				if !jsonFlag(cmd) {
					printIssues(cmd.OutOrStdout(), issues, len(errs), warnings)
				}
				return output.Usagef("configuration has %d error(s): %s", len(errs), strings.Join(errs, "; "))
			}
			if jsonFlag(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), cmd.CommandPath(), issues)
			}
			printIssues(cmd.OutOrStdout(), issues, 0, warnings)
			return nil
		},
	}
}

func printIssues(w io.Writer, issues []config.ConfigIssue, errCount, warnings int) {
	if errCount == 0 && warnings == 0 {
		color.New(color.FgGreen).Fprintln(w, "Configuration is valid")
		return
	}

	fmt.Fprintf(w, "Config validation: %d errors, %d warnings\n\n", errCount, warnings)
	for _, issue := range issues {
		switch issue.Severity {
		case "error":
			color.New(color.FgRed).Fprintf(w, "  %s\n", issue.Message)
		case "warning":
			color.New(color.FgYellow).Fprintf(w, "  %s\n", issue.Message)
		case "info":
			color.New(color.FgGreen).Fprintf(w, "  %s\n", issue.Message)
		}
		if issue.Fix != "" {
			fmt.Fprintf(w, "   Fix: %s\n", issue.Fix)
		}
	}
}

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the administrator policy",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := config.LoadPolicy()
			if err != nil {
				return err
			}
			if jsonFlag(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), cmd.CommandPath(), policy)
			}
			out := cmd.OutOrStdout()
			if policy == nil {
				fmt.Fprintf(out, "No policy at %s\n", config.PolicyPath())
				return nil
			}
			fmt.Fprintf(out, "Policy: %s\n\n", config.PolicyPath())
			fmt.Fprintf(out, "  provider:  %s (locked: %t)\n", policy.Provider, policy.Locked.Provider)
			fmt.Fprintf(out, "  model:     %s (locked: %t)\n", policy.Model, policy.Locked.Model)
			fmt.Fprintf(out, "  endpoints: %v\n", policy.AllowedEndpoints)
			fmt.Fprintf(out, "  commands:  %v\n", policy.AllowedCommands)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print a policy template for administrators",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), config.PolicyTemplate())
		},
	})
	return cmd
}
