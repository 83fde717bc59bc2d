package completion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func testRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "smartsheet"}
	root.AddCommand(&cobra.Command{Use: "text", Short: "Analyze one text column"})
	root.AddCommand(&cobra.Command{Use: "chart", Short: "Draw a chart"})
	root.AddCommand(NewCommand(root))
	return root
}

func TestCompletionScripts(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{"bash", "__start_smartsheet"},
		{"zsh", "compdef"},
		{"fish", "complete -c smartsheet"},
		{"powershell", "smartsheet"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			root := testRootCmd()
			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs([]string{"completion", tt.shell})
			if err := root.Execute(); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("%s completion should contain %q", tt.shell, tt.want)
			}
		})
	}
}

func TestCompletionRejectsUnknownShell(t *testing.T) {
	root := testRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"completion", "tcsh"})
	if err := root.Execute(); err == nil {
		t.Error("expected an error for an unsupported shell")
	}
}
