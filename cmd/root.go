package cmd

import (
	"errors"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"autopkg-setup/internal/config"
	"autopkg-setup/internal/fetcher"
	"autopkg-setup/internal/installer"
	"autopkg-setup/internal/logger"
	"autopkg-setup/internal/prefs"
	"autopkg-setup/internal/runner"
)

var (
	// debug enables cyan debug logging (--debug).
	debug bool
	// noColor disables colored output (--no-color).
	noColor bool
	// settingsPath is an optional YAML file overriding the default locations (--config).
	settingsPath string
)

// newProvisioner builds the Provisioner the commands run. Tests replace it
// to inject a scripted runner.
var newProvisioner = func() (*installer.Provisioner, error) {
	settings, err := config.DefaultForUser()
	if err != nil {
		return nil, err
	}
	if settingsPath != "" {
		if settings, err = config.Load(settingsPath, settings); err != nil {
			return nil, err
		}
	}

	f := fetcher.New()
	f.Progress = isTerminal(os.Stderr.Fd())
	return installer.New(settings, runner.NewExecRunner(), f), nil
}

// rootCmd provisions the whole machine: Command Line Tools, AutoPkg, then
// JSSImporter with the given credentials file.
var rootCmd = &cobra.Command{
	Use:   "autopkg-setup [credentials.yaml]",
	Short: "Set up AutoPkg and JSSImporter on a Mac",
	Long: `Installs the Xcode Command Line Tools, the latest AutoPkg release and
the JSSImporter plugin, then merges the credentials/preferences YAML file
into AutoPkg's preferences. Every step is safe to re-run.

The credentials file defaults to credentials.yaml in the current directory.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,

	// PersistentPreRun runs before any subcommand to set up logging.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(debug, noColor)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvisioner()
		if err != nil {
			return err
		}
		return p.Run(p.Pipeline(credentialsArg(args))...)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "", "YAML file overriding default paths and URLs")
}

// Execute runs the CLI and exits non-zero on any failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints err with guidance matching its kind.
func reportError(err error) {
	var (
		envErr *installer.EnvironmentError
		cfgErr *prefs.ConfigurationError
		netErr *fetcher.HTTPError
	)
	switch {
	case errors.As(err, &envErr):
		logger.Error("[ERROR] %s\n", envErr)
	case errors.As(err, &cfgErr):
		logger.Error("[ERROR] %v\n", err)
		logger.Warn("[WARN] Create the credentials file or pass its path as the first argument, then re-run.\n")
	case fetcher.IsHTTPStatus(err, http.StatusForbidden):
		logger.Error("[ERROR] %v\n", err)
		logger.Warn("[WARN] GitHub may be rate limiting this address; try again later.\n")
	case errors.As(err, &netErr):
		logger.Error("[ERROR] %v\n", err)
		logger.Warn("[WARN] Check the network connection and the configured download URLs.\n")
	default:
		logger.Error("[ERROR] %v\n", err)
	}
}

// isTerminal reports whether fd is an interactive terminal. The download
// spinner writes to stderr and is only drawn when it is one.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func credentialsArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
