package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopkg-setup/internal/runner"
	"autopkg-setup/internal/runner/runnertest"
)

func TestInstallCommandLineTools_Installs(t *testing.T) {
	h := newHarness(t)
	tools := h.p.Settings.Tools
	marker := h.p.Settings.CommandLineTools.MarkerFile

	h.fake.On(runnertest.Response{
		Stdout: cltListing,
		Hook: func(runner.Invocation) {
			assert.FileExists(t, marker, "marker must exist while listing")
		},
	}, tools.SoftwareUpdate, "-l")
	h.fake.On(runnertest.Response{Stdout: "Display Name  Version  Date\n"}, tools.SoftwareUpdate, "--history")

	res, err := h.p.InstallCommandLineTools()
	require.NoError(t, err)
	assert.Equal(t, cltLabel, res.Label)
	assert.True(t, res.Installed)
	assert.False(t, res.Skipped)

	assert.True(t, h.fake.Called(tools.SoftwareUpdate, "-l", "--product-types", "Command Line Tools"))
	assert.True(t, h.fake.Called(tools.Sudo, tools.SoftwareUpdate, "-i", cltLabel, "--verbose"))
	assert.NoFileExists(t, marker)
}

func TestInstallCommandLineTools_IdempotentSecondRun(t *testing.T) {
	h := newHarness(t)
	tools := h.p.Settings.Tools
	install := []string{tools.Sudo, tools.SoftwareUpdate, "-i"}

	h.fake.On(runnertest.Response{Stdout: cltListing}, tools.SoftwareUpdate, "-l")
	h.fake.On(runnertest.Response{Stdout: ""}, tools.SoftwareUpdate, "--history")

	_, err := h.p.InstallCommandLineTools()
	require.NoError(t, err)
	require.Equal(t, 1, h.fake.Count(install...))

	// the install now shows up in the history
	h.fake.On(runnertest.Response{
		Stdout: "Display Name                          Version    Date\n" +
			"------------                          -------    ----\n" +
			"Command Line Tools for Xcode          15.3       03/12/2026, 10:02:11\n",
	}, tools.SoftwareUpdate, "--history")

	res, err := h.p.InstallCommandLineTools()
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.False(t, res.Installed)
	assert.Equal(t, 1, h.fake.Count(install...), "second run must not install")
}

func TestInstallCommandLineTools_NothingListed(t *testing.T) {
	h := newHarness(t)
	tools := h.p.Settings.Tools
	h.fake.On(runnertest.Response{Stdout: "Software Update Tool\n\nNo new software available.\n"}, tools.SoftwareUpdate, "-l")

	res, err := h.p.InstallCommandLineTools()
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Label)
	assert.False(t, h.fake.Called(tools.SoftwareUpdate, "--history"))
	assert.NoFileExists(t, h.p.Settings.CommandLineTools.MarkerFile)
}

func TestInstallCommandLineTools_OSTooOld(t *testing.T) {
	h := newHarness(t)
	h.fake.On(runnertest.Response{Stdout: "10.8.5\n"}, h.p.Settings.Tools.SwVers)

	_, err := h.p.InstallCommandLineTools()

	var envErr *EnvironmentError
	require.ErrorAs(t, err, &envErr)
	assert.Contains(t, envErr.Error(), ">= 10.9")
	assert.False(t, h.fake.Called(h.p.Settings.Tools.SoftwareUpdate))
	assert.NoFileExists(t, h.p.Settings.CommandLineTools.MarkerFile)
}

func TestInstallCommandLineTools_InstallFailureRemovesMarker(t *testing.T) {
	h := newHarness(t)
	tools := h.p.Settings.Tools
	h.fake.On(runnertest.Response{Stdout: cltListing}, tools.SoftwareUpdate, "-l")
	h.fake.On(runnertest.Response{}, tools.SoftwareUpdate, "--history")
	h.fake.On(runnertest.Response{ExitCode: 1, Stderr: "Install failed"}, tools.Sudo, tools.SoftwareUpdate)

	_, err := h.p.InstallCommandLineTools()

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.NoFileExists(t, h.p.Settings.CommandLineTools.MarkerFile)
}

func TestParseCLTLabel(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    string
	}{
		{
			name:    "label form",
			listing: cltListing,
			want:    cltLabel,
		},
		{
			name: "legacy form, last match wins",
			listing: "   * Command Line Tools (macOS High Sierra version 10.13) for Xcode-9.4\n" +
				"\tCommand Line Tools (macOS High Sierra version 10.13) for Xcode (9.4), 187312K [recommended]\n" +
				"   * Command Line Tools (macOS High Sierra version 10.13) for Xcode-10.1\n",
			want: "Command Line Tools (macOS High Sierra version 10.13) for Xcode-10.1",
		},
		{
			name:    "unrelated updates",
			listing: "* Label: Safari17.4VenturaAuto-17.4\n",
			want:    "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCLTLabel(tt.listing))
		})
	}
}

func TestHistoryHasLabel(t *testing.T) {
	history := "Command Line Tools for Xcode    15.3    03/12/2026, 10:02:11\n"

	assert.True(t, historyHasLabel(history, "Command Line Tools for Xcode-15.3"))
	assert.False(t, historyHasLabel(history, "Command Line Tools for Xcode-16.0"))
	assert.False(t, historyHasLabel("", "Command Line Tools for Xcode-15.3"))
}
