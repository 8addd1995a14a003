package installer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"autopkg-setup/internal/prefs"
	"autopkg-setup/internal/runner/runnertest"
)

const credentialsYAML = `JSS_URL: https://jss.example.com:8443
API_USERNAME: autopkg
API_PASSWORD: s3cret
`

func readPrefs(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	_, err = plist.Unmarshal(data, &out)
	require.NoError(t, err)
	return out
}

func TestInstallJSSImporter_FreshPreferences(t *testing.T) {
	h := newHarness(t)
	s := h.p.Settings
	creds := h.writeWork(t, "credentials.yaml", credentialsYAML)

	res, err := h.p.InstallJSSImporter("")
	require.NoError(t, err)
	assert.Equal(t, creds, res.CredentialsFile)
	assert.False(t, res.PluginReplaced)

	cmds := h.fake.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, s.AutoPkg.Binary+" repo-add homebysix-recipes", cmds[0])
	assert.Equal(t, s.AutoPkg.Binary+" make-override JSSImporter.install", cmds[1])
	assert.True(t, strings.HasPrefix(cmds[2], s.AutoPkg.Binary+" run -v JSSImporter.install --report-plist "+filepath.Join(h.tmp, "autopkg-report-")))
	assert.True(t, strings.HasSuffix(res.ReportPlist, ".plist"))

	got := readPrefs(t, s.AutoPkg.PrefsFile)
	assert.Equal(t, "https://jss.example.com:8443", got["JSS_URL"])
	assert.Equal(t, "autopkg", got["API_USERNAME"])
}

func TestInstallJSSImporter_MergesExistingPreferences(t *testing.T) {
	h := newHarness(t)
	s := h.p.Settings
	require.NoError(t, os.MkdirAll(filepath.Dir(s.AutoPkg.PrefsFile), 0755))
	require.NoError(t, os.WriteFile(s.AutoPkg.PrefsFile, []byte("bplist00"), 0644))
	creds := filepath.Join(h.home, "elsewhere.yaml")
	require.NoError(t, os.WriteFile(creds, []byte(credentialsYAML), 0600))

	h.fake.On(runnertest.Response{
		Stdout: `{"JSS_URL":"https://old.example.com","RECIPE_OVERRIDE_DIRS":"~/Library/AutoPkg/RecipeOverrides"}`,
	}, s.Tools.Plutil)

	res, err := h.p.InstallJSSImporter(creds)
	require.NoError(t, err)
	assert.Equal(t, creds, res.CredentialsFile)
	assert.Equal(t, prefs.Mapping{
		"JSS_URL":              "https://jss.example.com:8443",
		"RECIPE_OVERRIDE_DIRS": "~/Library/AutoPkg/RecipeOverrides",
		"API_USERNAME":         "autopkg",
		"API_PASSWORD":         "s3cret",
	}, res.Preferences)

	got := readPrefs(t, s.AutoPkg.PrefsFile)
	assert.Equal(t, "~/Library/AutoPkg/RecipeOverrides", got["RECIPE_OVERRIDE_DIRS"])
	assert.Equal(t, "https://jss.example.com:8443", got["JSS_URL"])
}

func TestInstallJSSImporter_MissingCredentials(t *testing.T) {
	h := newHarness(t)

	_, err := h.p.InstallJSSImporter("")

	var cfgErr *prefs.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, filepath.Join(h.work, "credentials.yaml"), cfgErr.Path)
	assert.NoFileExists(t, h.p.Settings.AutoPkg.PrefsFile)
}

func TestInstallJSSImporter_RecipeFailureStops(t *testing.T) {
	h := newHarness(t)
	s := h.p.Settings
	h.writeWork(t, "credentials.yaml", credentialsYAML)
	h.fake.On(runnertest.Response{ExitCode: 70}, s.AutoPkg.Binary, "run")

	_, err := h.p.InstallJSSImporter("")
	assert.ErrorContains(t, err, "recipe JSSImporter.install failed")
	assert.NoFileExists(t, s.AutoPkg.PrefsFile)
}

func TestInstallJSSImporter_ReplacesPlugin(t *testing.T) {
	h := newHarness(t)
	h.p.Settings.JSSImporter.ReplacePlugin = true
	h.p.Settings.JSSImporter.PkgPath = "/tmp/JSSImporter.pkg"
	s := h.p.Settings
	h.writeWork(t, "credentials.yaml", credentialsYAML)

	res, err := h.p.InstallJSSImporter("")
	require.NoError(t, err)
	assert.True(t, res.PluginReplaced)
	assert.Equal(t, int32(1), h.hits["/raw/JSSImporter.py"].Load())

	assert.True(t, h.fake.Called(s.AutoPkg.Binary, "run", "-v", "JSSImporter.install", "-p", "/tmp/JSSImporter.pkg"))
	assert.True(t, h.fake.Called(s.Tools.Sudo, s.Tools.Mv,
		filepath.Join(h.tmp, "JSSImporter.py"),
		filepath.Join(s.AutoPkg.PluginDir, "JSSImporter.py")))
}
