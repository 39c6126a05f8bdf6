// Package frequency looks up a satellite's downlink and uplink frequencies
// from the SatNOGS DB transmitter API, falling back to the built-in catalog.
package frequency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://db.satnogs.org/api/transmitters/"

	// maxBodyBytes caps a transmitter listing; busy satellites list a few dozen entries.
	maxBodyBytes = 1 << 20
)

// Transmitter is the subset of a SatNOGS transmitter record we use.
// Frequencies are in Hz and null when the transmitter has no such leg.
type Transmitter struct {
	UUID        string   `json:"uuid"`
	Description string   `json:"description"`
	Alive       bool     `json:"alive"`
	Type        string   `json:"type"`
	UplinkLow   *float64 `json:"uplink_low"`
	DownlinkLow *float64 `json:"downlink_low"`
	Mode        string   `json:"mode"`
	NORADID     int      `json:"norad_cat_id"`
	Status      string   `json:"status"`
}

// Client queries the SatNOGS DB transmitter endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. An empty baseURL selects db.satnogs.org.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Transmitters returns the active transmitters of noradID.
func (c *Client) Transmitters(ctx context.Context, noradID int) ([]Transmitter, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	q := u.Query()
	q.Set("satellite__norad_cat_id", strconv.Itoa(noradID))
	q.Set("format", "json")
	q.Set("status", "active")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching transmitters: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, u.Host)
	}

	var txs []Transmitter
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := dec.Decode(&txs); err != nil {
		return nil, fmt.Errorf("decoding transmitters: %w", err)
	}

	c.logger.Debug("transmitters fetched", "norad_id", noradID, "count", len(txs), "duration_ms", time.Since(start).Milliseconds())
	return txs, nil
}
