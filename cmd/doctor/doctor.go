// Package doctor provides the "smartsheet doctor" command for checking setup health.
package doctor

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/smartsheet/internal/ai"
	"github.com/klytics/smartsheet/internal/config"
	"github.com/klytics/smartsheet/internal/output"
)

// Check represents a single health check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message"`
}

// NewCommand creates the "doctor" command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and policy",
		Long:  "Run diagnostic checks to verify smartsheet is properly configured. No network requests are made.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}
			checks := RunChecks(cfg, config.ConfigPath(), config.PolicyPath())

			errCount := 0
			for _, c := range checks {
				if c.Status == "error" {
					errCount++
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if err := output.PrintJSON(cmd.OutOrStdout(), cmd.CommandPath(), checks); err != nil {
					return err
				}
			} else {
				printChecks(cmd.OutOrStdout(), checks)
			}
			if errCount > 0 {
				return output.Reported(output.Usagef("%d check(s) failed", errCount))
			}
			return nil
		},
	}
}

func printChecks(w io.Writer, checks []Check) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w, "smartsheet doctor")
	fmt.Fprintln(w, "=================")
	fmt.Fprintln(w)

	okCount, warnCount, errCount := 0, 0, 0
	for _, c := range checks {
		var icon string
		switch c.Status {
		case "ok":
			icon = green("✓")
			okCount++
		case "warning":
			icon = yellow("!")
			warnCount++
		case "error":
			icon = red("✗")
			errCount++
		}
		fmt.Fprintf(w, "  %s %s: %s\n", icon, c.Name, c.Message)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)
}

// RunChecks inspects cfg and the files at configPath and policyPath.
func RunChecks(cfg *config.Config, configPath, policyPath string) []Check {
	checks := []Check{{
		Name:    "Go Runtime",
		Status:  "ok",
		Message: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}}

	if _, err := os.Stat(configPath); err == nil {
		checks = append(checks, Check{Name: "Config File", Status: "ok", Message: configPath})
	} else {
		checks = append(checks, Check{
			Name:    "Config File",
			Status:  "warning",
			Message: "Not found — run 'smartsheet config init' (defaults and environment still apply)",
		})
	}

	policy, err := config.LoadPolicyFrom(policyPath)
	switch {
	case err != nil:
		checks = append(checks, Check{Name: "Policy", Status: "error", Message: err.Error()})
	case policy == nil:
		checks = append(checks, Check{Name: "Policy", Status: "ok", Message: "None (" + policyPath + ")"})
	default:
		checks = append(checks, Check{Name: "Policy", Status: "ok", Message: policyPath})
		policy.Apply(cfg)
	}

	for _, issue := range config.Validate(cfg) {
		status := issue.Severity
		if status == "info" {
			status = "ok"
		}
		msg := issue.Message
		if issue.Fix != "" && status != "ok" {
			msg += " — " + issue.Fix
		}
		checks = append(checks, Check{Name: "Config " + issue.Key, Status: status, Message: msg})
	}

	settings := cfg.AISettings()
	endpoint := Check{Name: "Model Endpoint", Status: "ok", Message: ai.Endpoint(settings)}
	if err := policy.CheckEndpoint(settings); err != nil {
		endpoint.Status = "error"
		endpoint.Message = err.Error()
	}
	checks = append(checks, endpoint)

	return checks
}
