// Package command runs external tools (dataset download, dbt) as child
// processes with captured output.
package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Spec describes one invocation.
type Spec struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env entries are appended to the parent environment.
	Env []string
}

func (s Spec) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// Runner executes a Spec and returns its combined output.
type Runner interface {
	Run(ctx context.Context, s Spec) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, s Spec) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, s Spec) ([]byte, error) { return f(ctx, s) }

// Exec runs commands with os/exec. The child is killed when ctx is done.
type Exec struct{}

// Run implements Runner.
func (Exec) Run(ctx context.Context, s Spec) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.Name, s.Args...)
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.Bytes(), &Error{Cmd: s.String(), Output: tail(out.String(), 2048), Err: err}
	}
	return out.Bytes(), nil
}

// Error is returned when a command fails to start or exits non-zero.
type Error struct {
	Cmd    string
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Err, e.Output)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the child's exit code, or -1 when it did not run.
func (e *Error) ExitCode() int {
	if ee, ok := e.Err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
