// Package shell provides the "smartsheet shell" interactive REPL command.
package shell

import (
	"fmt"

	"github.com/spf13/cobra"

	shellpkg "github.com/klytics/smartsheet/internal/shell"
)

// NewCommand creates the "shell" command. runner executes each line as a
// smartsheet command.
func NewCommand(runner shellpkg.CommandRunner) *cobra.Command {
	var (
		evalCmd string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive smartsheet shell",
		Long: `Start an interactive REPL with tab completion.

'open <file>' picks the spreadsheet that text, chart, transform and read use
when no file is given. History is kept for the session only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := shellpkg.NewSession(runner)
			session.Out = cmd.OutOrStdout()
			session.Err = cmd.ErrOrStderr()
			if file != "" {
				if err := session.Open(file); err != nil {
					return err
				}
			}
			if evalCmd != "" {
				output, err := session.Eval(cmd.Context(), evalCmd)
				fmt.Fprint(session.Out, output)
				return err
			}
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&evalCmd, "eval", "", "Run a single command and exit")
	cmd.Flags().StringVar(&file, "file", "", "Open this spreadsheet at start")
	return cmd
}
