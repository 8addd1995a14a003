package installer

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"autopkg-setup/internal/config"
	"autopkg-setup/internal/fetcher"
	"autopkg-setup/internal/logger"
	"autopkg-setup/internal/runner"
)

// AutoPkgResult describes what the AutoPkg step did.
type AutoPkgResult struct {
	PackageURL string   // release asset that was installed
	Repos      []string // repositories passed to repo-add
}

// InstallAutoPkg downloads the latest AutoPkg release, installs it with the
// macOS installer, registers the repositories from the repo list and
// updates every installed repository. Re-running is safe because installer
// and repo-add tolerate an existing install; nothing is checked up front.
func (p *Provisioner) InstallAutoPkg() (AutoPkgResult, error) {
	var res AutoPkgResult
	cfg := p.Settings.AutoPkg

	if err := p.checkNotRoot(); err != nil {
		return res, err
	}

	url, err := p.Fetcher.ResolveLatestURL(cfg.ReleasesURL)
	if err != nil {
		return res, fmt.Errorf("failed to resolve latest AutoPkg release: %w", err)
	}
	res.PackageURL = url
	logger.Info("[INFO] Latest AutoPkg release: %s\n", url)

	download, err := downloadPath(cfg.DownloadPath, url)
	if err != nil {
		return res, err
	}
	if err := p.Fetcher.Fetch(url, download); err != nil {
		_ = removeQuietly(download)
		return res, fmt.Errorf("failed to download AutoPkg: %w", err)
	}

	unpackDir := filepath.Join(p.Settings.TempDir, "autopkg-unpacked")
	installErr := p.installPackage(download, unpackDir)

	// best-effort cleanup whether or not the install worked
	_ = removeQuietly(download)
	_ = removeQuietly(unpackDir)

	if installErr != nil {
		return res, installErr
	}

	repos, err := p.addRepos(cfg.RepoListFile)
	if err != nil {
		return res, err
	}
	res.Repos = repos

	if err := p.updateRepos(); err != nil {
		return res, err
	}
	return res, nil
}

// checkNotRoot refuses uid 0: the install must run as the end user, who
// is prompted by sudo for their password when needed.
func (p *Provisioner) checkNotRoot() error {
	if p.Getuid() == 0 {
		return &EnvironmentError{
			Msg:      "This tool cannot be run as root!",
			Guidance: "Please re-run it as the regular user.",
		}
	}
	logger.Info("[INFO] Administrator rights are required to install AutoPkg.\n")
	logger.Info("[INFO] Please enter your password if prompted.\n")
	return nil
}

// downloadPath keeps the configured path for installer packages and swaps
// its extension for archive assets, which need theirs to be unpacked. Any
// other asset (a .dmg, say) cannot be handed to installer and is refused.
func downloadPath(configured, url string) (string, error) {
	if fetcher.IsPackage(url) {
		return configured, nil
	}
	if ext := fetcher.ArchiveSuffix(url); ext != "" {
		return strings.TrimSuffix(configured, filepath.Ext(configured)) + ext, nil
	}
	return "", fmt.Errorf("unsupported AutoPkg release asset %s: expected a .pkg or an archive holding one", path.Base(url))
}

// installPackage locates the .pkg in the download and hands it to
// /usr/sbin/installer with elevated privileges.
func (p *Provisioner) installPackage(download, unpackDir string) error {
	pkg, err := fetcher.LocatePackage(download, unpackDir)
	if err != nil {
		return err
	}

	logger.Info("[INFO] Installing %s\n", filepath.Base(pkg))
	if _, err := mustSucceed(p.Runner, runner.Command(
		p.Settings.Tools.Sudo, p.Settings.Tools.Installer, "-pkg", pkg, "-target", "/")); err != nil {
		return fmt.Errorf("failed to install AutoPkg: %w", err)
	}
	return nil
}

// addRepos registers every repository from the optional repo list file.
// A failing repo-add is logged and the loop moves on.
func (p *Provisioner) addRepos(listFile string) ([]string, error) {
	repos, err := config.LoadRepoList(listFile)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("[INFO] No repo file at %s\n", listFile)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load repo list: %w", err)
	}

	for _, repo := range repos {
		logger.Info("[INFO] Adding recipe repo %s\n", repo)
		if err := warnOnFailure(p.Runner, p.autopkg("repo-add", repo)); err != nil {
			return repos, err
		}
	}
	return repos, nil
}

// updateRepos refreshes every installed recipe repository, including the
// ones that were already present before this run.
func (p *Provisioner) updateRepos() error {
	return warnOnFailure(p.Runner, p.autopkg("repo-update", "all"))
}

// autopkg builds an invocation of the AutoPkg executable.
func (p *Provisioner) autopkg(args ...string) runner.Invocation {
	return runner.Command(append([]string{p.Settings.AutoPkg.Binary}, args...)...)
}
