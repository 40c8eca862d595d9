// Package oracle provides observation and height sources for market
// resolution: an HTTP feed client, a cache-fronted wrapper, and static
// sources for development.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
)

// FeedClient is the REST client for an observation feed service. It serves
// both observations (GET /feeds/{id}) and the current height (GET /height).
type FeedClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFeedClient creates a feed client for the given API root.
func NewFeedClient(baseURL string, timeout time.Duration) *FeedClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FeedClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetObservation fetches the latest observation for a feed.
func (c *FeedClient) GetObservation(ctx context.Context, feedID string) (domain.Observation, error) {
	path := fmt.Sprintf("/feeds/%s", url.PathEscape(feedID))

	body, err := c.doGet(ctx, path)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("oracle: get feed %s: %w", feedID, err)
	}

	var obs domain.Observation
	if err := json.Unmarshal(body, &obs); err != nil {
		return domain.Observation{}, fmt.Errorf("oracle: decode feed %s: %w", feedID, err)
	}
	if obs.FeedID == "" {
		obs.FeedID = feedID
	}
	return obs, nil
}

// Height fetches the current height of the external clock.
func (c *FeedClient) Height(ctx context.Context) (uint64, error) {
	body, err := c.doGet(ctx, "/height")
	if err != nil {
		return 0, fmt.Errorf("oracle: get height: %w", err)
	}

	var resp struct {
		Height uint64 `json:"height"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("oracle: decode height: %w", err)
	}
	return resp.Height, nil
}

func (c *FeedClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var (
	_ domain.ObservationSource = (*FeedClient)(nil)
	_ domain.HeightSource      = (*FeedClient)(nil)
)
