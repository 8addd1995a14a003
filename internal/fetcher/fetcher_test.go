package fetcher

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveLatestURL(t *testing.T) {
	srv := newServer(t, http.StatusOK, `[{"assets":[{"browser_download_url":"http://x/pkg.pkg"}]}]`)

	url, err := New().ResolveLatestURL(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "http://x/pkg.pkg", url)
}

func TestResolveLatestURL_TakesFirstReleaseFirstAsset(t *testing.T) {
	srv := newServer(t, http.StatusOK, `[
		{"tag_name":"v2.7.3","assets":[
			{"name":"autopkg-2.7.3.pkg","browser_download_url":"http://x/autopkg-2.7.3.pkg"},
			{"name":"autopkg-2.7.3.pkg.sha256","browser_download_url":"http://x/autopkg-2.7.3.pkg.sha256"}]},
		{"tag_name":"v2.7.2","assets":[{"browser_download_url":"http://x/autopkg-2.7.2.pkg"}]}
	]`)

	url, err := New().ResolveLatestURL(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "http://x/autopkg-2.7.3.pkg", url)
}

func TestResolveLatestURL_NonOK(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError, http.StatusNoContent} {
		srv := newServer(t, status, "rate limited")

		_, err := New().ResolveLatestURL(srv.URL)
		require.Error(t, err)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, status, httpErr.StatusCode)
		assert.True(t, IsHTTPStatus(err, status))
	}
}

func TestResolveLatestURL_BodyKeptOnError(t *testing.T) {
	srv := newServer(t, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)

	_, err := New().ResolveLatestURL(srv.URL)
	assert.ErrorContains(t, err, "returned an error 403")
	assert.ErrorContains(t, err, "API rate limit exceeded")
}

func TestResolveLatestURL_EmptyListings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no releases", `[]`, "no releases"},
		{"no assets", `[{"tag_name":"v1","assets":[]}]`, "no downloadable asset"},
		{"not json", `<html>`, "failed to decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, http.StatusOK, tt.body)
			_, err := New().ResolveLatestURL(srv.URL)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestFetch_WritesBodyVerbatim(t *testing.T) {
	payload := "xar!\x00\x1c\x00\x01binary-ish"
	srv := newServer(t, http.StatusOK, payload)
	dest := filepath.Join(t.TempDir(), "autopkg-latest.pkg")

	require.NoError(t, New().Fetch(srv.URL, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestFetch_NonOKLeavesNoFile(t *testing.T) {
	srv := newServer(t, http.StatusNotFound, "not here")
	dest := filepath.Join(t.TempDir(), "autopkg-latest.pkg")

	err := New().Fetch(srv.URL, dest)
	assert.True(t, IsHTTPStatus(err, http.StatusNotFound))
	assert.NoFileExists(t, dest)
}

func TestFetch_SendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
	}))
	defer srv.Close()

	require.NoError(t, New().Fetch(srv.URL, filepath.Join(t.TempDir(), "out")))
	assert.Equal(t, "autopkg-setup", ua)
}
