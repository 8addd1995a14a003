package installer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"autopkg-setup/internal/config"
	"autopkg-setup/internal/fetcher"
	"autopkg-setup/internal/logger"
	"autopkg-setup/internal/runner"
	"autopkg-setup/internal/state"
)

// Step names, also used as CLI subcommand names.
const (
	StepCommandLineTools = "commandline-tools"
	StepAutoPkg          = "autopkg"
	StepJSSImporter      = "jssimporter"
)

// Provisioner carries everything the install steps need. All paths come
// from Settings; nothing is looked up relative to the working directory.
type Provisioner struct {
	Settings config.Settings
	Runner   runner.Runner
	Fetcher  *fetcher.Fetcher
	Getuid   func() int
	// Out receives the summary table after Run; nil disables it.
	Out io.Writer

	record *state.RunRecord
}

// New returns a Provisioner using the real user id.
func New(settings config.Settings, r runner.Runner, f *fetcher.Fetcher) *Provisioner {
	return &Provisioner{
		Settings: settings,
		Runner:   r,
		Fetcher:  f,
		Getuid:   os.Getuid,
		Out:      os.Stdout,
	}
}

// Step is one unit of the pipeline. Run returns the status to record
// (state.StatusOK or state.StatusSkipped) and a short detail line.
type Step struct {
	Name string
	Run  func() (status, detail string, err error)
}

// CommandLineToolsStep wraps InstallCommandLineTools.
func (p *Provisioner) CommandLineToolsStep() Step {
	return Step{Name: StepCommandLineTools, Run: func() (string, string, error) {
		res, err := p.InstallCommandLineTools()
		if p.record != nil {
			p.record.CommandLineTools = res.Label
		}
		if err != nil {
			return "", "", err
		}
		switch {
		case res.Installed:
			return state.StatusOK, "installed " + res.Label, nil
		case res.Label != "":
			return state.StatusSkipped, res.Label + " already installed", nil
		default:
			return state.StatusSkipped, "nothing to install", nil
		}
	}}
}

// AutoPkgStep wraps InstallAutoPkg.
func (p *Provisioner) AutoPkgStep() Step {
	return Step{Name: StepAutoPkg, Run: func() (string, string, error) {
		res, err := p.InstallAutoPkg()
		if p.record != nil {
			p.record.AutoPkgPackageURL = res.PackageURL
		}
		if err != nil {
			return "", "", err
		}
		return state.StatusOK, fmt.Sprintf("installed %s, %d repos added", lastPathElem(res.PackageURL), len(res.Repos)), nil
	}}
}

// JSSImporterStep wraps InstallJSSImporter.
func (p *Provisioner) JSSImporterStep(credentials string) Step {
	return Step{Name: StepJSSImporter, Run: func() (string, string, error) {
		res, err := p.InstallJSSImporter(credentials)
		if p.record != nil {
			p.record.RecipeReport = res.ReportPlist
			if err == nil {
				p.record.PreferencesFile = p.Settings.AutoPkg.PrefsFile
			}
		}
		if err != nil {
			return "", "", err
		}
		return state.StatusOK, fmt.Sprintf("%d preferences written", len(res.Preferences)), nil
	}}
}

// Pipeline is the full provisioning sequence.
func (p *Provisioner) Pipeline(credentials string) []Step {
	return []Step{
		p.CommandLineToolsStep(),
		p.AutoPkgStep(),
		p.JSSImporterStep(credentials),
	}
}

// Run executes steps in order and stops at the first failure; whatever
// earlier steps changed stays changed. Every outcome is recorded in the
// run ledger and summarised on Out.
func (p *Provisioner) Run(steps ...Step) error {
	st := state.LoadState(p.Settings.StateFile)
	if prev := st.Last(); prev != nil && prev.Failed() {
		logger.Info("[INFO] Previous run %s did not finish, starting over\n", prev.ID)
	}
	p.record = state.NewRun()
	defer func() {
		p.record.FinishedAt = time.Now().UTC()
		st.Append(*p.record)
		state.SaveState(p.Settings.StateFile, st)
		p.printSummary()
		if p.record.Failed() {
			logger.Warn("[WARN] Run %s stopped early; steps that finished keep their changes\n", p.record.ID)
		}
		p.record = nil
	}()

	logger.Debug("[DEBUG] Provisioning run %s with %d steps\n", p.record.ID, len(steps))
	for _, s := range steps {
		logger.Info("[INFO] ==> %s\n", s.Name)
		status, detail, err := s.Run()
		if err != nil {
			p.record.Record(s.Name, state.StatusFailed, firstLine(err.Error()))
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		p.record.Record(s.Name, status, detail)
	}
	return nil
}

// printSummary renders the current run as a table.
func (p *Provisioner) printSummary() {
	if p.Out == nil || p.record == nil {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(p.Out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Provisioning run " + p.record.ID)
	t.AppendHeader(table.Row{"Step", "Status", "Detail"})
	for _, s := range p.record.Steps {
		t.AppendRow(table.Row{s.Name, s.Status, s.Detail})
	}
	t.Render()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func lastPathElem(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}
