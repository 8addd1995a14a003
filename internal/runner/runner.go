package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"autopkg-setup/internal/logger"
)

// Invocation is a single external command: the argument vector, argv[0] being
// the program, plus optional data piped to its stdin.
type Invocation struct {
	Args  []string
	Stdin []byte
	// Quiet keeps the output of this call out of the log, whatever the
	// runner's own setting. Set it for commands that print secrets.
	Quiet bool
}

// Command builds an Invocation without stdin.
func Command(args ...string) Invocation {
	return Invocation{Args: args}
}

// String renders the argument vector for logs.
func (inv Invocation) String() string {
	return strings.Join(inv.Args, " ")
}

// Result is the transient record of a finished command.
type Result struct {
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Combined returns stdout followed by stderr, for error messages.
func (r *Result) Combined() string {
	return strings.TrimSpace(string(r.Stdout) + string(r.Stderr))
}

// Runner executes external commands synchronously.
//
// A non-zero exit status is not an error: it is reported in Result.ExitCode
// and the caller decides whether the failure matters. An error is returned
// only when the command could not be run at all.
type Runner interface {
	Run(inv Invocation) (*Result, error)
}

// ExecRunner runs commands through os/exec and surfaces their output
// through the logger.
type ExecRunner struct {
	// Quiet suppresses echoing stdout/stderr.
	Quiet bool
}

// NewExecRunner creates a runner that echoes command output.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes inv and blocks until the process exits.
func (e *ExecRunner) Run(inv Invocation) (*Result, error) {
	if len(inv.Args) == 0 {
		return nil, errors.New("empty command")
	}

	cmd := exec.Command(inv.Args[0], inv.Args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}

	logger.Debug("[DEBUG] Running command: %s\n", inv)
	err := cmd.Run()

	res := &Result{
		Args:   inv.Args,
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", inv.Args[0], err)
		}
		res.ExitCode = exitErr.ExitCode()
		logger.Debug("[DEBUG] %s exited with status %d\n", inv.Args[0], res.ExitCode)
	}

	if !e.Quiet && !inv.Quiet {
		if len(res.Stdout) > 0 {
			logger.Info("Result:\n%s\n", res.Stdout)
		}
		if len(res.Stderr) > 0 {
			logger.Warn("Error:\n%s\n", res.Stderr)
		}
	}

	return res, nil
}
