// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for smartsheet.

Install instructions:
  Bash:       smartsheet completion bash > /etc/bash_completion.d/smartsheet
              echo 'source <(smartsheet completion bash)' >> ~/.bashrc
  Zsh:        smartsheet completion zsh > ~/.zsh/completions/_smartsheet
  Fish:       smartsheet completion fish > ~/.config/fish/completions/smartsheet.fish
  PowerShell: smartsheet completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				fmt.Fprintln(out, "# smartsheet bash completion")
				return rootCmd.GenBashCompletionV2(out, true)
			case "zsh":
				fmt.Fprintln(out, "# smartsheet zsh completion")
				return rootCmd.GenZshCompletion(out)
			case "fish":
				fmt.Fprintln(out, "# smartsheet fish completion")
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				fmt.Fprintln(out, "# smartsheet PowerShell completion")
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
	return cmd
}
