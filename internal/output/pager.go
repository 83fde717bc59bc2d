package output

import (
	"io"
	"os"
	"os/exec"
	"strings"
)

// defaultPageHeight is used when LINES is unset.
const defaultPageHeight = 40

// ShouldPage reports whether content is taller than the terminal on stdout.
func ShouldPage(content string, termHeight int) bool {
	if !isTerminal() {
		return false
	}
	return strings.Count(content, "\n") > termHeight
}

// Page pipes content through $PAGER, or less.
func Page(content string) error {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}

	cmd := exec.Command(pager)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// PageOrWrite pages long content on a terminal and writes it to w otherwise.
// A pager that fails to start falls back to w.
func PageOrWrite(w io.Writer, content string) error {
	if w == os.Stdout && ShouldPage(content, defaultPageHeight) {
		if err := Page(content); err == nil {
			return nil
		}
	}
	_, err := io.WriteString(w, content)
	return err
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
