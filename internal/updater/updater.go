// Package updater checks GitHub for new safedraft releases and can
// replace the running binary in place. The check is best-effort and
// never blocks or fails the server; the binary swap is atomic (write to
// temp, rename over the executable).
package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	githubRepo = "safedraft/safedraft"
	binaryName = "safedraft"

	latestReleaseURL = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
)

// Test injection points.
var (
	releaseEndpoint = latestReleaseURL
	httpClient      = &http.Client{Timeout: 10 * time.Second}
)

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// UpdateResult reports the outcome of a version check.
type UpdateResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// CheckVersion queries GitHub for the latest release. It never returns
// an error: on any failure the result simply reports no update.
func CheckVersion(currentVersion string) *UpdateResult {
	result := &UpdateResult{CurrentVersion: trimV(currentVersion)}

	rel, err := fetchLatestRelease(currentVersion)
	if err != nil {
		return result
	}

	result.LatestVersion = trimV(rel.TagName)
	result.ReleaseURL = rel.HTMLURL
	result.UpdateAvailable = compareVersions(result.CurrentVersion, result.LatestVersion) < 0
	return result
}

// SelfUpdate downloads the release archive for this OS/arch and swaps
// the running executable.
func SelfUpdate(currentVersion string) error {
	rel, err := fetchLatestRelease(currentVersion)
	if err != nil {
		return err
	}

	latest := trimV(rel.TagName)
	if compareVersions(trimV(currentVersion), latest) >= 0 {
		return fmt.Errorf("updater: already at latest version (%s)", currentVersion)
	}

	assetName := assetNameFor(latest)
	var downloadURL string
	for _, a := range rel.Assets {
		if a.Name == assetName {
			downloadURL = a.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("updater: no asset for %s/%s (wanted %s)", runtime.GOOS, runtime.GOARCH, assetName)
	}

	resp, err := httpClient.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("updater: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("updater: download returned %d", resp.StatusCode)
	}

	binary, err := extractBinary(resp.Body, assetName)
	if err != nil {
		return err
	}
	return swapExecutable(binary)
}

func fetchLatestRelease(currentVersion string) (*release, error) {
	req, err := http.NewRequest(http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("updater: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", binaryName+"/"+currentVersion)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("updater: fetch release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("updater: GitHub API returned %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("updater: decode release: %w", err)
	}
	return &rel, nil
}

// extractBinary pulls the safedraft binary out of the release archive.
// Releases ship .tar.gz everywhere except Windows, which uses .zip and
// is directed to a manual download.
func extractBinary(r io.Reader, assetName string) ([]byte, error) {
	if strings.HasSuffix(assetName, ".zip") {
		return nil, fmt.Errorf("updater: automatic update not supported for zip archives; download manually from the release page")
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("updater: open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("updater: read tar: %w", err)
		}
		name := filepath.Base(header.Name)
		if name == binaryName || name == binaryName+".exe" {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("updater: read binary: %w", err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("updater: %s binary not found in archive", binaryName)
}

// swapExecutable writes the new binary next to the current one and
// renames it into place. Windows cannot replace a running binary
// directly, so the old one is moved aside first.
func swapExecutable(binary []byte) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("updater: locate executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("updater: resolve symlinks: %w", err)
	}

	tmpPath := execPath + ".new"
	if err := os.WriteFile(tmpPath, binary, 0o755); err != nil {
		return fmt.Errorf("updater: write new binary: %w", err)
	}

	if runtime.GOOS == "windows" {
		oldPath := execPath + ".old"
		os.Remove(oldPath)
		if err := os.Rename(execPath, oldPath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("updater: move current binary aside: %w", err)
		}
	}

	if err := os.Rename(tmpPath, execPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("updater: replace binary: %w", err)
	}
	return nil
}

// assetNameFor matches the release pipeline's archive name template.
func assetNameFor(version string) string {
	ext := "tar.gz"
	if runtime.GOOS == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", binaryName, version, runtime.GOOS, runtime.GOARCH, ext)
}

func trimV(v string) string {
	return strings.TrimPrefix(v, "v")
}

// compareVersions compares two dotted versions numerically per part.
// Returns -1 when a < b, 0 when equal, 1 when a > b. Empty or "dev"
// versions compare as newest so dev builds never self-update.
func compareVersions(a, b string) int {
	if a == "" || b == "" || a == "dev" {
		return 1
	}

	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	for len(ap) < 3 {
		ap = append(ap, "0")
	}
	for len(bp) < 3 {
		bp = append(bp, "0")
	}

	for i := 0; i < 3; i++ {
		an, bn := leadingInt(ap[i]), leadingInt(bp[i])
		if an < bn {
			return -1
		}
		if an > bn {
			return 1
		}
	}
	return 0
}

// leadingInt parses the leading digit run of s, 0 when there is none.
func leadingInt(s string) int {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			break
		}
		n = n*10 + int(ch-'0')
	}
	return n
}
