package config

// Settings holds every location and endpoint the installers use.
// Nothing in the installers looks at the working directory or the home
// directory on its own; Default resolves those once and the values are
// passed down from here.
type Settings struct {
	Tools            ToolPaths        `yaml:"tools"`
	CommandLineTools CommandLineTools `yaml:"commandline_tools"`
	AutoPkg          AutoPkg          `yaml:"autopkg"`
	JSSImporter      JSSImporter      `yaml:"jssimporter"`
	TempDir          string           `yaml:"temp_dir"`   // Scratch space for downloads and recipe reports
	StateFile        string           `yaml:"state_file"` // JSON ledger of provisioning runs
}

// ToolPaths are the absolute paths of the macOS utilities that get invoked.
type ToolPaths struct {
	Sudo           string `yaml:"sudo"`
	Installer      string `yaml:"installer"`
	SoftwareUpdate string `yaml:"softwareupdate"`
	SwVers         string `yaml:"sw_vers"`
	Plutil         string `yaml:"plutil"`
	Mv             string `yaml:"mv"`
}

// CommandLineTools configures the Xcode Command Line Tools step.
// - MinOSVersion: oldest macOS release the softwareupdate flow works on.
// - MarkerFile: file softwareupdate needs before it lists the tools.
// - ProductType: value passed to --product-types.
type CommandLineTools struct {
	MinOSVersion string `yaml:"min_os_version"`
	MarkerFile   string `yaml:"marker_file"`
	ProductType  string `yaml:"product_type"`
}

// AutoPkg configures the AutoPkg install and its recipe repositories.
type AutoPkg struct {
	Binary       string `yaml:"binary"`
	ReleasesURL  string `yaml:"releases_url"`
	DownloadPath string `yaml:"download_path"`
	RepoListFile string `yaml:"repo_list_file"` // Optional; text (one repo per line) or YAML
	PrefsFile    string `yaml:"prefs_file"`
	PluginDir    string `yaml:"plugin_dir"`
}

// JSSImporter configures the plugin install and the preferences merge.
type JSSImporter struct {
	RecipeRepo      string `yaml:"recipe_repo"`
	Recipe          string `yaml:"recipe"`
	PkgPath         string `yaml:"pkg_path"`         // Passed to `autopkg run -p` when set
	ReplacePlugin   bool   `yaml:"replace_plugin"`   // Swap in PluginURL after the recipe ran
	PluginURL       string `yaml:"plugin_url"`
	PrefsFormat     string `yaml:"prefs_format"`     // "xml" or "binary"
	CredentialsFile string `yaml:"credentials_file"` // Used when no path is given on the command line
}
