package installer

import "fmt"

// EnvironmentError means the machine or the invoking user cannot run a step:
// wrong privilege level or an unsupported OS version. It is fatal.
type EnvironmentError struct {
	Msg      string
	Guidance string
}

func (e *EnvironmentError) Error() string {
	if e.Guidance == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s\n%s", e.Msg, e.Guidance)
}

// CommandError reports an external command that exited non-zero where the
// step cannot continue without it.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.ExitCode, e.Output)
}
