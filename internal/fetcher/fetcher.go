package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"autopkg-setup/internal/logger"
)

// maxErrorBody caps how much of a failed response is kept in an HTTPError.
const maxErrorBody = 4096

// HTTPError is returned for any response whose status is not 200.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s returned an error %d, the response is:\n%s", e.URL, e.StatusCode, e.Body)
}

// Release is the subset of a GitHub release object the fetcher reads.
type Release struct {
	TagName string  `json:"tag_name"` // The release tag (e.g., v2.7.2)
	Assets  []Asset `json:"assets"`
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`                 // Asset filename
	BrowserDownloadURL string `json:"browser_download_url"` // Direct download URL for the asset
}

// Fetcher resolves release download URLs and downloads artifacts.
// There is no retry, resume or checksum verification.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
	// Progress shows a spinner on ProgressWriter while a download runs.
	Progress       bool
	ProgressWriter io.Writer
}

// New returns a Fetcher using a client without timeout, so a stalled
// transfer blocks until the server gives up.
func New() *Fetcher {
	return &Fetcher{
		Client:         &http.Client{},
		UserAgent:      "autopkg-setup",
		ProgressWriter: os.Stderr,
	}
}

// get issues a GET and returns the response only when the status is 200.
// The caller closes the body.
func (f *Fetcher) get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	logger.Debug("[DEBUG] GET %s\n", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		closeBody(resp)
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// ResolveLatestURL reads a releases listing and returns the download URL of
// the first asset of the first release in it.
func (f *Fetcher) ResolveLatestURL(endpoint string) (string, error) {
	resp, err := f.get(endpoint)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	var releases []Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return "", fmt.Errorf("failed to decode releases JSON from %s: %w", endpoint, err)
	}
	if len(releases) == 0 {
		return "", fmt.Errorf("no releases listed at %s", endpoint)
	}

	latest := releases[0]
	logger.Debug("[DEBUG] Latest release tag: %s with %d assets\n", latest.TagName, len(latest.Assets))
	if len(latest.Assets) == 0 || latest.Assets[0].BrowserDownloadURL == "" {
		return "", fmt.Errorf("release %s at %s has no downloadable asset", latest.TagName, endpoint)
	}
	return latest.Assets[0].BrowserDownloadURL, nil
}

// Fetch downloads url and writes the response body verbatim to dest.
func (f *Fetcher) Fetch(url, dest string) (err error) {
	if f.Progress && f.ProgressWriter != nil {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f.ProgressWriter))
		s.Suffix = " Downloading " + url
		s.Start()
		defer s.Stop()
	}

	resp, err := f.get(url)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dest, cerr)
		}
	}()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write response to %s: %w", dest, err)
	}

	logger.Debug("[DEBUG] Downloaded %d bytes to: %s\n", n, dest)
	return nil
}

// IsHTTPStatus reports whether err is an HTTPError carrying status.
func IsHTTPStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}

func closeBody(resp *http.Response) {
	if cerr := resp.Body.Close(); cerr != nil {
		logger.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
	}
}
