package state

import (
	"encoding/json" // For JSON encoding and decoding of the state file
	"os"            // For file system operations like reading and writing files
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"autopkg-setup/internal/logger" // Custom logger package for logging errors and debug info
)

// maxRuns bounds how many runs the ledger keeps.
const maxRuns = 20

// Step outcomes recorded in the ledger.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// StepState is the outcome of one provisioning step.
type StepState struct {
	Name   string `json:"name"`             // Step name, e.g. "autopkg"
	Status string `json:"status"`           // ok, skipped or failed
	Detail string `json:"detail,omitempty"` // Human readable summary or error text
}

// RunRecord describes one invocation of the provisioning pipeline.
type RunRecord struct {
	ID                string      `json:"id"`
	StartedAt         time.Time   `json:"started_at"`
	FinishedAt        time.Time   `json:"finished_at"`
	Steps             []StepState `json:"steps"`
	CommandLineTools  string      `json:"commandline_tools,omitempty"`   // Label found by softwareupdate
	AutoPkgPackageURL string      `json:"autopkg_package_url,omitempty"` // Release asset that was installed
	RecipeReport      string      `json:"recipe_report,omitempty"`       // --report-plist of the JSSImporter recipe run
	PreferencesFile   string      `json:"preferences_file,omitempty"`    // Preferences file that was written
}

// NewRun starts a record with a fresh ID.
func NewRun() *RunRecord {
	return &RunRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Record appends a step outcome.
func (r *RunRecord) Record(name, status, detail string) {
	r.Steps = append(r.Steps, StepState{Name: name, Status: status, Detail: detail})
}

// Failed reports whether any step failed.
func (r *RunRecord) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// State is the persisted ledger of recent runs, oldest first.
type State struct {
	Runs []RunRecord `json:"runs"`
}

// Last returns the most recent run, or nil.
func (s *State) Last() *RunRecord {
	if len(s.Runs) == 0 {
		return nil
	}
	return &s.Runs[len(s.Runs)-1]
}

// Append adds run and drops the oldest entries beyond maxRuns.
func (s *State) Append(run RunRecord) {
	s.Runs = append(s.Runs, run)
	if len(s.Runs) > maxRuns {
		s.Runs = s.Runs[len(s.Runs)-maxRuns:]
	}
}

// LoadState loads the saved state from a JSON file at the given path.
// If the file does not exist or cannot be parsed, it returns an empty State.
func LoadState(path string) *State {
	// Read entire state JSON file into memory
	file, err := os.ReadFile(path)
	if err != nil {
		return &State{}
	}

	var st State
	if err := json.Unmarshal(file, &st); err != nil {
		logger.Warn("[WARN] Ignoring unreadable state file %s: %v\n", path, err)
		return &State{}
	}
	return &st
}

// SaveState writes the given State struct to a JSON file at the given path.
// It pretty-prints the JSON with indentation for readability.
// Errors during marshalling or writing are logged but not propagated:
// losing the ledger never fails a provisioning run.
func SaveState(path string, st *State) {
	file, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		logger.Error("[ERROR] Failed to marshal state: %v\n", err)
		return
	}

	logger.Debug("[DEBUG] Writing state to %s:\n%s\n", path, string(file))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Error("[ERROR] Failed to create state directory for %s: %v\n", path, err)
		return
	}

	// Write the JSON bytes to the file with mode 0644 (read/write owner, read others)
	if err := os.WriteFile(path, file, 0644); err != nil {
		// Log write errors, e.g., permission denied or disk full
		logger.Error("[ERROR] Failed to write state file %s: %v\n", path, err)
	}
}
