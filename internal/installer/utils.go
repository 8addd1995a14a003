package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autopkg-setup/internal/logger"
	"autopkg-setup/internal/runner"
)

// touch creates path if needed and bumps its modification time.
func touch(path string) error {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// removeQuietly deletes path (file or directory tree) on a best-effort basis.
// A failure is logged and returned; callers that do not care discard it.
func removeQuietly(path string) error {
	if path == "" {
		return nil
	}
	err := os.RemoveAll(path)
	if err != nil {
		logger.Warn("[WARN] Could not remove %s: %v\n", path, err)
		return err
	}
	logger.Debug("[DEBUG] Removed %s\n", path)
	return nil
}

// mustSucceed runs inv and turns a non-zero exit into a CommandError.
func mustSucceed(r runner.Runner, inv runner.Invocation) (*runner.Result, error) {
	res, err := r.Run(inv)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return res, &CommandError{Command: inv.String(), ExitCode: res.ExitCode, Output: res.Combined()}
	}
	return res, nil
}

// warnOnFailure runs inv and only logs a non-zero exit; for commands whose
// failure leaves the rest of the step meaningful (repo-add, make-override).
func warnOnFailure(r runner.Runner, inv runner.Invocation) error {
	res, err := r.Run(inv)
	if err != nil {
		return fmt.Errorf("failed to run %s: %w", inv, err)
	}
	if !res.Success() {
		logger.Warn("[WARN] %s exited with status %d, continuing\n", inv, res.ExitCode)
	}
	return nil
}
