package formats

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/famomatic/ytcipher/internal/downloader"
)

// FetchManifest downloads a DASH or HLS manifest and returns its formats.
func FetchManifest(ctx context.Context, client *http.Client, protocol, manifestURL string) ([]Format, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s manifest: %w", protocol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &downloader.HTTPStatusError{URL: manifestURL, StatusCode: resp.StatusCode}
	}
	body, err := downloader.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	switch protocol {
	case ProtocolDASH:
		return ParseDASHManifest(string(body), manifestURL)
	case ProtocolHLS:
		return ParseHLSManifest(string(body), manifestURL)
	}
	return nil, fmt.Errorf("unknown manifest protocol %q", protocol)
}

func resolveReference(base, ref string) string {
	ref = strings.TrimSpace(ref)
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
