package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://celestrak.org/NORAD/elements/gp.php"

	// maxBodyBytes caps a single response; one element set is ~170 bytes.
	maxBodyBytes = 1 << 20
)

// Fetcher downloads element sets from CelesTrak's GP query endpoint.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. An empty baseURL selects CelesTrak.
func NewFetcher(baseURL string, logger *slog.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// FetchRaw performs the GET for one catalog number and returns the body.
func (f *Fetcher) FetchRaw(ctx context.Context, noradID int) ([]byte, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	q := u.Query()
	q.Set("CATNR", strconv.Itoa(noradID))
	q.Set("FORMAT", "TLE")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, u.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}

	f.logger.Debug("tle fetched", "norad_id", noradID, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

// Fetch downloads and parses the element set for noradID.
func (f *Fetcher) Fetch(ctx context.Context, noradID int) (TLEEntry, error) {
	body, err := f.FetchRaw(ctx, noradID)
	if err != nil {
		return TLEEntry{}, err
	}
	entries, err := Parse(bytes.NewReader(body), f.logger)
	if err != nil {
		return TLEEntry{}, err
	}
	entry, ok := Find(entries, noradID)
	if !ok {
		return TLEEntry{}, fmt.Errorf("NORAD %d: %w", noradID, ErrNoEntries)
	}
	return entry, nil
}
