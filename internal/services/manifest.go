package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
	"github.com/gregjones/httpcache"
)

// ManifestFetcher resolves addon URLs into descriptors.
//
// Responses are cached in memory, so repeated fetches of one URL across accounts become
// conditional requests.
type ManifestFetcher struct {
	api *APIService
}

// NewManifestFetcher creates a fetcher with an in-memory caching transport.
func NewManifestFetcher(timeout time.Duration, userAgent string) *ManifestFetcher {
	client := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   timeout,
	}
	return NewManifestFetcherWithClient(client, userAgent)
}

// NewManifestFetcherWithClient creates a fetcher over a caller-supplied client.
func NewManifestFetcherWithClient(client *http.Client, userAgent string) *ManifestFetcher {
	return &ManifestFetcher{api: NewAPIService("", client).WithUserAgent(userAgent)}
}

// NormalizeURL turns user-pasted addon links into manifest URLs.
//
//   - stremio://host/path becomes https://host/path
//   - a trailing /configure becomes /manifest.json
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty addon URL", shared.ErrInvalidInput)
	}
	if rest, ok := strings.CutPrefix(s, "stremio://"); ok {
		s = "https://" + rest
	}
	if base, ok := strings.CutSuffix(s, "/configure"); ok {
		s = base + "/manifest.json"
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", shared.ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", shared.ErrInvalidInput, raw)
	}
	return s, nil
}

// manifestFlags reads the optional flags member of a manifest.
type manifestFlags struct {
	Flags *models.Flags `json:"flags"`
}

// Fetch retrieves and validates the manifest at rawURL.
//
// Every failure is returned as a [shared.FetchError].
func (f *ManifestFetcher) Fetch(ctx context.Context, rawURL string) (*models.AddonDescriptor, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, &shared.FetchError{URL: rawURL, Cause: err}
	}

	resp, err := f.api.Get(ctx, target)
	if err != nil {
		return nil, &shared.FetchError{URL: target, Cause: err}
	}
	if !resp.OK() {
		return nil, &shared.FetchError{URL: target, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if !resp.IsJSON {
		return nil, &shared.FetchError{URL: target, Cause: fmt.Errorf("%w: response is not JSON", shared.ErrInvalidManifest)}
	}

	var m models.Manifest
	if err := json.Unmarshal(resp.Body, &m); err != nil {
		return nil, &shared.FetchError{URL: target, Cause: fmt.Errorf("%w: %v", shared.ErrInvalidManifest, err)}
	}
	if err := m.Valid(); err != nil {
		return nil, &shared.FetchError{URL: target, Cause: fmt.Errorf("%w: %v", shared.ErrInvalidManifest, err)}
	}

	d := &models.AddonDescriptor{TransportURL: target, Manifest: m}
	var mf manifestFlags
	if err := json.Unmarshal(resp.Body, &mf); err == nil && mf.Flags != nil {
		d.Flags = *mf.Flags
	}
	return d, nil
}
