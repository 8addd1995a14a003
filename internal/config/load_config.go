package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults used when no settings file overrides them.
const (
	DefaultReleasesURL     = "https://api.github.com/repos/autopkg/autopkg/releases"
	DefaultPluginURL       = "https://raw.githubusercontent.com/jssimporter/JSSImporter/master/JSSImporter.py"
	DefaultCredentials     = "credentials.yaml"
	DefaultRepoList        = "autopkg-repo-list.txt"
	DefaultRecipeRepo      = "homebysix-recipes"
	DefaultRecipe          = "JSSImporter.install"
	DefaultMinOSVersion    = "10.9"
	DefaultPrefsRelative   = "Library/Preferences/com.github.autopkg.plist"
	commandLineToolsMarker = ".com.apple.dt.CommandLineTools.installondemand.in-progress"
)

// Default returns the settings the original provisioning flow hard-codes,
// resolved against the given home, working and temp directories.
func Default(home, workDir, tmpDir string) Settings {
	return Settings{
		Tools: ToolPaths{
			Sudo:           "/usr/bin/sudo",
			Installer:      "/usr/sbin/installer",
			SoftwareUpdate: "/usr/sbin/softwareupdate",
			SwVers:         "/usr/bin/sw_vers",
			Plutil:         "/usr/bin/plutil",
			Mv:             "/bin/mv",
		},
		CommandLineTools: CommandLineTools{
			MinOSVersion: DefaultMinOSVersion,
			MarkerFile:   filepath.Join(tmpDir, commandLineToolsMarker),
			ProductType:  "Command Line Tools",
		},
		AutoPkg: AutoPkg{
			Binary:       "/usr/local/bin/autopkg",
			ReleasesURL:  DefaultReleasesURL,
			DownloadPath: filepath.Join(tmpDir, "autopkg-latest.pkg"),
			RepoListFile: filepath.Join(workDir, DefaultRepoList),
			PrefsFile:    filepath.Join(home, DefaultPrefsRelative),
			PluginDir:    "/Library/AutoPkg/autopkglib",
		},
		JSSImporter: JSSImporter{
			RecipeRepo:      DefaultRecipeRepo,
			Recipe:          DefaultRecipe,
			PluginURL:       DefaultPluginURL,
			PrefsFormat:     "xml",
			CredentialsFile: filepath.Join(workDir, DefaultCredentials),
		},
		TempDir:   tmpDir,
		StateFile: filepath.Join(home, ".autopkg-setup", "state.json"),
	}
}

// DefaultForUser resolves Default against the invoking user's home directory,
// the current working directory and /tmp.
func DefaultForUser() (Settings, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return Settings{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return Default(home, wd, "/tmp"), nil
}

// Load overlays the YAML settings file at path onto base.
// Keys missing from the file keep the value they have in base.
func Load(path string, base Settings) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	s := base
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return base, fmt.Errorf("failed to unmarshal settings file %s: %w", path, err)
	}

	switch s.JSSImporter.PrefsFormat {
	case "xml", "binary":
	default:
		return base, fmt.Errorf("invalid prefs_format %q (want xml or binary)", s.JSSImporter.PrefsFormat)
	}
	return s, nil
}

// CredentialsPath picks the credentials file: an explicit path wins,
// otherwise the configured default.
func (s Settings) CredentialsPath(arg string) string {
	if arg != "" {
		return arg
	}
	return s.JSSImporter.CredentialsFile
}

// LoadRepoList reads the ordered list of AutoPkg recipe repositories.
//
// Files ending in .yaml or .yml hold either a top-level sequence or a
// `repos:` sequence. Anything else is plain text with one repository per
// line; blank lines and lines starting with # are skipped.
// A missing file is returned as an error wrapping os.ErrNotExist.
func LoadRepoList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return parseRepoYAML(raw)
	}

	var repos []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		repos = append(repos, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repo list %s: %w", path, err)
	}
	return repos, nil
}

func parseRepoYAML(raw []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(raw, &list); err == nil {
		return trimRepos(list), nil
	}

	var wrapper struct {
		Repos []string `yaml:"repos"`
	}
	if err := yaml.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal repo list: %w", err)
	}
	return trimRepos(wrapper.Repos), nil
}

func trimRepos(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
