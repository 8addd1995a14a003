package installer

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"autopkg-setup/internal/logger"
	"autopkg-setup/internal/prefs"
	"autopkg-setup/internal/runner"
)

// JSSImporterResult describes what the JSSImporter step did.
type JSSImporterResult struct {
	ReportPlist     string        // --report-plist written by the recipe run
	PluginReplaced  bool          // JSSImporter.py was swapped for PluginURL
	CredentialsFile string        // input merged into the preferences
	Preferences     prefs.Mapping // merged preferences as written
}

// InstallJSSImporter installs JSSImporter through its AutoPkg recipe and
// merges the credentials file into AutoPkg's preferences.
// credentials may be empty to use the configured default path.
func (p *Provisioner) InstallJSSImporter(credentials string) (JSSImporterResult, error) {
	var res JSSImporterResult
	cfg := p.Settings.JSSImporter

	logger.Info("[INFO] Adding recipe repo %s\n", cfg.RecipeRepo)
	if err := warnOnFailure(p.Runner, p.autopkg("repo-add", cfg.RecipeRepo)); err != nil {
		return res, err
	}

	// make-override fails when the override exists, which is fine on re-runs
	if err := warnOnFailure(p.Runner, p.autopkg("make-override", cfg.Recipe)); err != nil {
		return res, err
	}

	res.ReportPlist = filepath.Join(p.Settings.TempDir, "autopkg-report-"+p.runID()+".plist")
	if err := p.runRecipe(cfg.Recipe, res.ReportPlist, cfg.PkgPath); err != nil {
		return res, err
	}

	if cfg.ReplacePlugin {
		if err := p.replacePlugin(); err != nil {
			return res, err
		}
		res.PluginReplaced = true
	}

	res.CredentialsFile = p.Settings.CredentialsPath(credentials)
	logger.Info("[INFO] Reading credentials from %s\n", res.CredentialsFile)

	merged, err := prefs.MergeFile(p.Runner, p.Settings.Tools.Plutil,
		p.Settings.AutoPkg.PrefsFile, res.CredentialsFile, cfg.PrefsFormat)
	if err != nil {
		return res, err
	}
	res.Preferences = merged
	logger.Info("[INFO] Wrote %d preferences to %s\n", len(merged), p.Settings.AutoPkg.PrefsFile)
	return res, nil
}

// runRecipe executes `autopkg run -v` on recipe, optionally against a
// package path, writing a report plist.
func (p *Provisioner) runRecipe(recipe, reportPlist, pkgPath string) error {
	args := []string{"run", "-v", recipe}
	if pkgPath != "" {
		args = append(args, "-p", pkgPath)
	}
	if reportPlist != "" {
		args = append(args, "--report-plist", reportPlist)
	}

	logger.Info("[INFO] Running recipe %s\n", recipe)
	if _, err := mustSucceed(p.Runner, p.autopkg(args...)); err != nil {
		return fmt.Errorf("recipe %s failed: %w", recipe, err)
	}
	return nil
}

// replacePlugin downloads the plugin source and moves it over the copy
// the recipe installed. The plugin directory is root-owned, hence sudo.
func (p *Provisioner) replacePlugin() error {
	cfg := p.Settings.JSSImporter
	name := path.Base(cfg.PluginURL)
	tmp := filepath.Join(p.Settings.TempDir, name)

	logger.Info("[INFO] Replacing %s from %s\n", name, cfg.PluginURL)
	if err := p.Fetcher.Fetch(cfg.PluginURL, tmp); err != nil {
		_ = removeQuietly(tmp)
		return fmt.Errorf("failed to download %s: %w", name, err)
	}

	dest := filepath.Join(p.Settings.AutoPkg.PluginDir, name)
	if _, err := mustSucceed(p.Runner, runner.Command(p.Settings.Tools.Sudo, p.Settings.Tools.Mv, tmp, dest)); err != nil {
		_ = removeQuietly(tmp)
		return fmt.Errorf("failed to move %s into %s: %w", name, p.Settings.AutoPkg.PluginDir, err)
	}
	return nil
}

// runID names per-run artifacts; it matches the ledger entry when the step
// runs inside Run.
func (p *Provisioner) runID() string {
	if p.record != nil {
		return p.record.ID
	}
	return uuid.NewString()
}
