// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"errors"
	"strings"

	"autopkg-setup/internal/runner"
)

// Response is the canned outcome for invocations matching a prefix.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
	// Hook runs before the response is returned, e.g. to create a file
	// the real command would have produced.
	Hook func(inv runner.Invocation)
}

type rule struct {
	prefix []string
	resp   Response
}

// Fake records every invocation and answers from scripted responses.
// Rules are matched by argument prefix, most recently added first, so a test
// can override an earlier default. Unmatched invocations succeed with no output.
type Fake struct {
	rules []rule
	Calls []runner.Invocation
}

// On registers resp for invocations whose arguments start with prefix.
func (f *Fake) On(resp Response, prefix ...string) *Fake {
	f.rules = append(f.rules, rule{prefix: prefix, resp: resp})
	return f
}

// Run implements runner.Runner.
func (f *Fake) Run(inv runner.Invocation) (*runner.Result, error) {
	if len(inv.Args) == 0 {
		return nil, errors.New("empty command")
	}
	f.Calls = append(f.Calls, inv)

	for i := len(f.rules) - 1; i >= 0; i-- {
		r := f.rules[i]
		if !hasPrefix(inv.Args, r.prefix) {
			continue
		}
		if r.resp.Hook != nil {
			r.resp.Hook(inv)
		}
		if r.resp.Err != nil {
			return nil, r.resp.Err
		}
		return &runner.Result{
			Args:     inv.Args,
			Stdout:   []byte(r.resp.Stdout),
			Stderr:   []byte(r.resp.Stderr),
			ExitCode: r.resp.ExitCode,
		}, nil
	}

	return &runner.Result{Args: inv.Args}, nil
}

// Called reports whether any recorded invocation starts with prefix.
func (f *Fake) Called(prefix ...string) bool {
	return f.Count(prefix...) > 0
}

// Count returns how many recorded invocations start with prefix.
func (f *Fake) Count(prefix ...string) int {
	n := 0
	for _, c := range f.Calls {
		if hasPrefix(c.Args, prefix) {
			n++
		}
	}
	return n
}

// Commands returns every recorded invocation joined with spaces.
func (f *Fake) Commands() []string {
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

func hasPrefix(args, prefix []string) bool {
	if len(prefix) > len(args) {
		return false
	}
	for i, p := range prefix {
		if args[i] != p {
			return false
		}
	}
	return true
}
