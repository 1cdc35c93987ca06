package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oszuidwest/zwfm-talkrec/internal/types"
	"github.com/oszuidwest/zwfm-talkrec/internal/util"
)

const (
	githubRepo = "oszuidwest/zwfm-talkrec"
	githubAPI  = "https://api.github.com"

	releaseCheckEvery   = 24 * time.Hour
	releaseFirstCheck   = 30 * time.Second // keeps startup off the network
	releaseFetchTimeout = 30 * time.Second
	releaseAttempts     = 3
	releaseRetryAfter   = time.Minute
)

// errTryLater marks a release lookup that failed for a reason that may pass.
var errTryLater = errors.New("release lookup failed, retrying later")

// VersionChecker looks up the newest talkrec release once a day so the
// status page can offer an update.
type VersionChecker struct {
	apiBase string
	client  http.Client

	mu     sync.RWMutex
	latest string
	etag   string
}

// NewVersionChecker starts checking for releases until ctx is done.
func NewVersionChecker(ctx context.Context) *VersionChecker {
	vc := &VersionChecker{
		apiBase: githubAPI,
		client:  http.Client{Timeout: releaseFetchTimeout},
	}
	go vc.run(ctx)
	return vc
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (vc *VersionChecker) run(ctx context.Context) {
	for wait := releaseFirstCheck; sleep(ctx, wait); wait = releaseCheckEvery {
		for attempt := 1; attempt <= releaseAttempts; attempt++ {
			if vc.check(ctx) || attempt == releaseAttempts || !sleep(ctx, releaseRetryAfter) {
				break
			}
		}
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check refreshes the latest release. It returns false when the lookup
// should be retried.
func (vc *VersionChecker) check(ctx context.Context) bool {
	tag, etag, err := vc.fetchLatest(ctx)
	if err != nil {
		slog.Debug("release check failed", "error", err)
		return !errors.Is(err, errTryLater)
	}
	if tag == "" {
		return true
	}

	vc.mu.Lock()
	vc.latest = normalizeVersion(tag)
	if etag != "" {
		vc.etag = etag
	}
	vc.mu.Unlock()
	return true
}

// fetchLatest asks GitHub for the newest published release. An empty tag
// means nothing new: unchanged, no releases yet, or only a draft.
func (vc *VersionChecker) fetchLatest(ctx context.Context) (tag, etag string, err error) {
	url := vc.apiBase + "/repos/" + githubRepo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent())

	vc.mu.RLock()
	if vc.etag != "" {
		req.Header.Set("If-None-Match", vc.etag)
	}
	vc.mu.RUnlock()

	resp, err := vc.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", errTryLater, err)
	}
	defer util.Close(resp.Body, "release response body")

	switch code := resp.StatusCode; {
	case code == http.StatusNotModified, code == http.StatusNotFound:
		return "", "", nil
	case code == http.StatusForbidden, code == http.StatusTooManyRequests, code >= 500:
		return "", "", fmt.Errorf("%w: status %d", errTryLater, code)
	case code != http.StatusOK:
		return "", "", fmt.Errorf("unexpected status %d", code)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", "", fmt.Errorf("%w: %w", errTryLater, err)
	}
	if release.Draft || release.Prerelease {
		return "", "", nil
	}
	if release.TagName == "" {
		return "", "", fmt.Errorf("%w: release without tag", errTryLater)
	}
	return release.TagName, resp.Header.Get("ETag"), nil
}

// Info returns the running and latest versions for the status page.
// Builds without a semver version never report an update.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	current := normalizeVersion(Version)
	return types.VersionInfo{
		Current:     current,
		Latest:      vc.latest,
		Commit:      Commit,
		BuildTime:   util.FormatHumanTime(BuildTime),
		UpdateAvail: vc.latest != "" && semver.IsValid(canonicalVersion(current)) && isNewerVersion(vc.latest, current),
	}
}

// normalizeVersion strips whitespace and a leading "v".
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// canonicalVersion returns v in the "v"-prefixed form semver expects.
func canonicalVersion(v string) string {
	return "v" + normalizeVersion(v)
}

func isNewerVersion(latest, current string) bool {
	return semver.Compare(canonicalVersion(latest), canonicalVersion(current)) > 0
}
