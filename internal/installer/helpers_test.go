package installer

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"autopkg-setup/internal/config"
	"autopkg-setup/internal/fetcher"
	"autopkg-setup/internal/runner/runnertest"
)

const (
	cltListing = `Software Update Tool

Finding available software
Software Update found the following new or updated software:
* Label: Command Line Tools for Xcode-15.3
	Title: Command Line Tools for Xcode, Version: 15.3, Size: 707501KiB, Recommended: YES,
`
	cltLabel = "Command Line Tools for Xcode-15.3"
)

type harness struct {
	p      *Provisioner
	fake   *runnertest.Fake
	out    *bytes.Buffer
	home   string
	work   string
	tmp    string
	server *httptest.Server
	hits   map[string]*atomic.Int32
}

// newHarness builds a Provisioner whose commands go to a fake runner and
// whose releases API is a local test server.
func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		fake: &runnertest.Fake{},
		out:  &bytes.Buffer{},
		home: filepath.Join(root, "home"),
		work: filepath.Join(root, "work"),
		tmp:  filepath.Join(root, "tmp"),
		hits: map[string]*atomic.Int32{},
	}
	for _, d := range []string{h.home, h.work, h.tmp} {
		require.NoError(t, os.MkdirAll(d, 0755))
	}

	mux := http.NewServeMux()
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)

	h.handle(mux, "/repos/autopkg/autopkg/releases", http.StatusOK,
		`[{"tag_name":"v2.7.3","assets":[{"name":"autopkg-2.7.3.pkg","browser_download_url":"`+h.server.URL+`/download/autopkg-2.7.3.pkg"}]}]`)
	h.handle(mux, "/download/autopkg-2.7.3.pkg", http.StatusOK, "xar!pkg")
	h.handle(mux, "/raw/JSSImporter.py", http.StatusOK, "# JSSImporter")

	settings := config.Default(h.home, h.work, h.tmp)
	settings.AutoPkg.ReleasesURL = h.server.URL + "/repos/autopkg/autopkg/releases"
	settings.JSSImporter.PluginURL = h.server.URL + "/raw/JSSImporter.py"

	h.p = New(settings, h.fake, fetcher.New())
	h.p.Getuid = func() int { return 501 }
	h.p.Out = h.out

	h.fake.On(runnertest.Response{Stdout: "14.4\n"}, settings.Tools.SwVers)
	return h
}

func (h *harness) handle(mux *http.ServeMux, path string, status int, body string) {
	n := &atomic.Int32{}
	h.hits[path] = n
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		n.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (h *harness) writeWork(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.work, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
