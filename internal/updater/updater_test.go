package updater

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// --- compareVersions ---

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"newer patch", "0.2.0", "0.2.1", -1},
		{"newer minor", "0.2.0", "0.3.0", -1},
		{"newer major", "0.2.0", "1.0.0", -1},
		{"same", "0.2.0", "0.2.0", 0},
		{"older", "0.3.0", "0.2.0", 1},
		{"two part a", "0.2", "0.2.1", -1},
		{"two part b", "0.2.1", "0.2", 1},
		{"minor jump", "0.9.0", "0.10.0", -1},
		{"dev never updates", "dev", "9.9.9", 1},
		{"empty a", "", "0.2.0", 1},
		{"empty b", "0.2.0", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareVersions(tt.a, tt.b); got != tt.want {
				t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTrimV(t *testing.T) {
	if trimV("v1.2.3") != "1.2.3" {
		t.Error("leading v not stripped")
	}
	if trimV("1.2.3") != "1.2.3" {
		t.Error("plain version changed")
	}
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"0", 0},
		{"42", 42},
		{"3rc1", 3},
		{"rc1", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := leadingInt(tt.input); got != tt.want {
			t.Errorf("leadingInt(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// --- CheckVersion ---

func withFakeRelease(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	orig := releaseEndpoint
	releaseEndpoint = srv.URL
	t.Cleanup(func() { releaseEndpoint = orig })
}

func TestCheckVersion_UpdateAvailable(t *testing.T) {
	withFakeRelease(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"tag_name": "v1.5.0",
			"html_url": "https://example.com/release/v1.5.0",
		})
	})

	result := CheckVersion("1.0.0")
	if !result.UpdateAvailable {
		t.Fatal("update not reported")
	}
	if result.LatestVersion != "1.5.0" {
		t.Errorf("LatestVersion = %q", result.LatestVersion)
	}
	if result.ReleaseURL != "https://example.com/release/v1.5.0" {
		t.Errorf("ReleaseURL = %q", result.ReleaseURL)
	}
}

func TestCheckVersion_AlreadyLatest(t *testing.T) {
	withFakeRelease(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"tag_name": "v1.0.0"})
	})

	if CheckVersion("1.0.0").UpdateAvailable {
		t.Error("update reported at latest version")
	}
}

func TestCheckVersion_ServerErrorIsSilent(t *testing.T) {
	withFakeRelease(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	result := CheckVersion("1.0.0")
	if result.UpdateAvailable {
		t.Error("update reported despite API failure")
	}
	if result.CurrentVersion != "1.0.0" {
		t.Errorf("CurrentVersion = %q", result.CurrentVersion)
	}
}

func TestCheckVersion_DevBuildNeverUpdates(t *testing.T) {
	withFakeRelease(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"tag_name": "v99.0.0"})
	})

	if CheckVersion("dev").UpdateAvailable {
		t.Error("dev build offered an update")
	}
}

// --- assetNameFor ---

func TestAssetNameFor(t *testing.T) {
	name := assetNameFor("1.2.3")
	if name == "" {
		t.Fatal("empty asset name")
	}
	// The name embeds version, OS, and arch so each platform downloads
	// its own build.
	for _, part := range []string{"safedraft_", "1.2.3"} {
		if !strings.Contains(name, part) {
			t.Errorf("asset name %q missing %q", name, part)
		}
	}
}
