package installer

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"autopkg-setup/internal/logger"
	"autopkg-setup/internal/runner"
)

// CLTResult describes what the Command Line Tools step did.
type CLTResult struct {
	Label     string // softwareupdate label, empty when nothing was listed
	Installed bool   // an install ran in this invocation
	Skipped   bool   // already installed or nothing to install
}

// InstallCommandLineTools installs the Xcode Command Line Tools through
// softwareupdate unless the install history already holds the listed label.
func (p *Provisioner) InstallCommandLineTools() (CLTResult, error) {
	var res CLTResult
	cfg := p.Settings.CommandLineTools

	if err := p.checkOSVersion(); err != nil {
		return res, err
	}

	// softwareupdate only lists the tools while this file exists
	if err := touch(cfg.MarkerFile); err != nil {
		return res, fmt.Errorf("failed to create %s: %w", cfg.MarkerFile, err)
	}
	defer func() { _ = removeQuietly(cfg.MarkerFile) }()

	list, err := mustSucceed(p.Runner, runner.Command(
		p.Settings.Tools.SoftwareUpdate, "-l", "--product-types", cfg.ProductType))
	if err != nil {
		return res, fmt.Errorf("failed to list software updates: %w", err)
	}

	res.Label = parseCLTLabel(string(list.Stdout))
	if res.Label == "" {
		logger.Info("[INFO] No Command Line Tools update listed. Skipping.\n")
		res.Skipped = true
		return res, nil
	}
	logger.Info("[INFO] Found: %s\n", res.Label)

	history, err := mustSucceed(p.Runner, runner.Command(p.Settings.Tools.SoftwareUpdate, "--history"))
	if err != nil {
		return res, fmt.Errorf("failed to read install history: %w", err)
	}
	if historyHasLabel(string(history.Stdout), res.Label) {
		logger.Info("[INFO] Command Line Tools already installed\n")
		res.Skipped = true
		return res, nil
	}

	logger.Info("[INFO] Installing: %s\n", res.Label)
	if _, err := mustSucceed(p.Runner, runner.Command(
		p.Settings.Tools.Sudo, p.Settings.Tools.SoftwareUpdate, "-i", res.Label, "--verbose")); err != nil {
		return res, fmt.Errorf("failed to install %s: %w", res.Label, err)
	}
	res.Installed = true
	return res, nil
}

// checkOSVersion fails unless the running macOS is at least MinOSVersion.
func (p *Provisioner) checkOSVersion() error {
	out, err := mustSucceed(p.Runner, runner.Command(p.Settings.Tools.SwVers, "-productVersion"))
	if err != nil {
		return fmt.Errorf("failed to read macOS version: %w", err)
	}

	raw := strings.TrimSpace(string(out.Stdout))
	current, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("unrecognised macOS version %q: %w", raw, err)
	}
	minimum, err := semver.NewVersion(p.Settings.CommandLineTools.MinOSVersion)
	if err != nil {
		return fmt.Errorf("invalid min_os_version %q: %w", p.Settings.CommandLineTools.MinOSVersion, err)
	}

	logger.Debug("[DEBUG] macOS %s, minimum %s\n", current, minimum)
	if current.LessThan(minimum) {
		return &EnvironmentError{
			Msg: fmt.Sprintf("Sorry, this tool is only for use on OS X/macOS >= %s (found %s)",
				p.Settings.CommandLineTools.MinOSVersion, raw),
		}
	}
	return nil
}

// parseCLTLabel extracts the Command Line Tools label from
// `softwareupdate -l` output. Both the old listing ("* Command Line Tools
// (macOS ...)") and the newer one ("* Label: Command Line Tools for
// Xcode-15.3") are understood; the last match wins.
func parseCLTLabel(listing string) string {
	var label string
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "*") || !strings.Contains(line, "Command Line Tools") {
			continue
		}
		candidate := strings.TrimSpace(strings.TrimPrefix(line, "*"))
		candidate = strings.TrimSpace(strings.TrimPrefix(candidate, "Label:"))
		if candidate != "" {
			label = candidate
		}
	}
	return label
}

// historyHasLabel reports whether `softwareupdate --history` lists label.
// History prints "Command Line Tools for Xcode   15.3" where the listing
// says "Command Line Tools for Xcode-15.3", so dashes and runs of
// whitespace are both folded to single spaces before comparing.
func historyHasLabel(history, label string) bool {
	want := collapseSpaces(strings.ReplaceAll(label, "-", " "))
	scanner := bufio.NewScanner(strings.NewReader(history))
	for scanner.Scan() {
		if strings.Contains(collapseSpaces(scanner.Text()), want) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
