package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klytics/smartsheet/cmd/version"
)

// Exit codes for consistent error reporting.
const (
	ExitOK          = 0 // success
	ExitUserError   = 1 // bad flags, missing file, bad coordinates, policy refusal
	ExitSystemError = 2 // network failure, IO error, model API error
)

// UserError marks a failure the user can fix by changing the invocation.
type UserError struct {
	Err error
}

func (e *UserError) Error() string { return e.Err.Error() }
func (e *UserError) Unwrap() error { return e.Err }

// Usage wraps err as a user error. A nil err stays nil.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &UserError{Err: err}
}

// Usagef formats a new user error.
func Usagef(format string, args ...any) error {
	return &UserError{Err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ExitUserError
	}
	return ExitSystemError
}

// reportedError marks a failure whose details the command already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported wraps err so the caller sets the exit code without printing it
// again. A nil err stays nil.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// IsReported reports whether err was wrapped by Reported.
func IsReported(err error) bool {
	var re *reportedError
	return errors.As(err, &re)
}

// JSONResult is the standard JSON output envelope for all commands.
type JSONResult struct {
	OK      bool        `json:"ok"`
	Command string      `json:"command"`
	Version string      `json:"version"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"`
}

// PrintJSON writes a success envelope to w.
func PrintJSON(w io.Writer, cmd string, data interface{}) error {
	return encode(w, JSONResult{
		OK:      true,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	})
}

// PrintJSONError writes a failure envelope to w.
func PrintJSONError(w io.Writer, cmd string, err error) error {
	if encErr := encode(w, JSONResult{
		OK:      false,
		Command: cmd,
		Version: version.Version,
		Error:   err.Error(),
		Code:    ExitCode(err),
	}); encErr != nil {
		return fmt.Errorf("could not encode JSON error: %w", encErr)
	}
	return nil
}

func encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
