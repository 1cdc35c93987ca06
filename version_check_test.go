package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.9", true},
		{"v1.10.0", "1.9.0", true},
		{"1.0.0", "1.0.0", false},
		{"1.0.0", "v1.2.0", false},
		{"garbage", "1.0.0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isNewerVersion(tt.latest, tt.current), "%s vs %s", tt.latest, tt.current)
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "1.2.3", normalizeVersion(" v1.2.3 "))
	assert.Equal(t, "v1.2.3", canonicalVersion("1.2.3"))
}

func TestVersionCheck(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/repos/"+githubRepo+"/releases/latest", r.URL.Path)
		assert.Equal(t, "zwfm-talkrec/dev", r.Header.Get("User-Agent"))
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte(`{"tag_name":"v9.9.9"}`))
	}))
	defer srv.Close()

	vc := &VersionChecker{apiBase: srv.URL}
	assert.True(t, vc.check(context.Background()))
	assert.True(t, vc.check(context.Background()))
	assert.Equal(t, 2, calls)

	info := vc.Info()
	assert.Equal(t, "9.9.9", info.Latest)
	assert.Equal(t, normalizeVersion(Version), info.Current)
	assert.False(t, info.UpdateAvail, "development builds never report updates")
}

func TestVersionCheckRetryableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	vc := &VersionChecker{apiBase: srv.URL}
	assert.False(t, vc.check(context.Background()))
	assert.Empty(t, vc.Info().Latest)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "talkrec dev (commit unknown, built unknown)", versionString())
}

func TestVersionCheckIgnoresDraftsAndMissingReleases(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"v2.0.0-rc1","prerelease":true}`))
	}))
	defer srv.Close()

	vc := &VersionChecker{apiBase: srv.URL}
	assert.True(t, vc.check(context.Background()))
	status = http.StatusOK
	assert.True(t, vc.check(context.Background()))
	assert.Empty(t, vc.Info().Latest)

	status = http.StatusBadRequest
	assert.True(t, vc.check(context.Background()), "client errors are not retried")
}

func TestInfoReportsUpdateForReleasedBuild(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })

	vc := &VersionChecker{latest: "1.4.0"}
	Version = "v1.3.2"
	info := vc.Info()
	assert.Equal(t, "1.3.2", info.Current)
	assert.True(t, info.UpdateAvail)

	Version = "1.4.0"
	assert.False(t, vc.Info().UpdateAvail)
}
