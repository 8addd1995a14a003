package main

import (
	"autopkg-setup/cmd" // Import the cmd package which contains the CLI commands and execution logic
)

// main is the program entry point.
// It delegates to cmd.Execute() which handles command line argument parsing and execution.
//
// autopkg-setup prepares a Mac for packaging with AutoPkg and JSSImporter:
//   - Installs the Xcode Command Line Tools through softwareupdate, skipping them
//     when the install history already lists the available release
//   - Installs the latest AutoPkg release from GitHub, registers the recipe repos
//     listed in autopkg-repo-list.txt and updates every installed repo
//   - Installs JSSImporter through its AutoPkg recipe and merges a YAML
//     credentials file into ~/Library/Preferences/com.github.autopkg.plist
//   - Records each run in a JSON ledger under ~/.autopkg-setup
//
// Error handling strategy:
//   - Steps run in order and the first failure stops the run; nothing is rolled back
//   - Running as root, an unsupported macOS, a failing HTTP request or a missing
//     credentials file exit with status 1 after printing guidance
//   - Cleanup of downloads is best-effort and only logged when it fails
func main() {
	cmd.Execute()
}
