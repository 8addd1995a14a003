package cmd

import (
	"github.com/spf13/cobra"

	"autopkg-setup/internal/installer"
)

// Each step can be run on its own once the steps before it have been
// satisfied, e.g. `autopkg-setup jssimporter` on a machine with AutoPkg.

var commandLineToolsCmd = &cobra.Command{
	Use:   installer.StepCommandLineTools,
	Short: "Install the Xcode Command Line Tools if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvisioner()
		if err != nil {
			return err
		}
		return p.Run(p.CommandLineToolsStep())
	},
}

var autoPkgCmd = &cobra.Command{
	Use:   installer.StepAutoPkg,
	Short: "Install the latest AutoPkg and register recipe repos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvisioner()
		if err != nil {
			return err
		}
		return p.Run(p.AutoPkgStep())
	},
}

var jssImporterCmd = &cobra.Command{
	Use:   installer.StepJSSImporter + " [credentials.yaml]",
	Short: "Install JSSImporter and merge credentials into AutoPkg preferences",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvisioner()
		if err != nil {
			return err
		}
		return p.Run(p.JSSImporterStep(credentialsArg(args)))
	},
}

func init() {
	rootCmd.AddCommand(commandLineToolsCmd)
	rootCmd.AddCommand(autoPkgCmd)
	rootCmd.AddCommand(jssImporterCmd)
}
