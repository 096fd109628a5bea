package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/partner-dispatch/internal/models"
)

// Placeholder is substituted when the reverse-geocode call fails. Dispatch
// never blocks on an address.
const Placeholder = "Unknown location"

// Client resolves coordinates to a human-readable address against a
// Nominatim-style reverse endpoint.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	cache    *cache
}

func NewClient(endpoint string, cacheTTL time.Duration) *Client {
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 2 * time.Second},
		cache:    newCache(cacheTTL),
	}
}

// Reverse returns an address for the coordinate, or Placeholder on any
// failure. Best-effort: the error is swallowed here on purpose.
func (c *Client) Reverse(ctx context.Context, loc models.Coord) string {
	if c.Endpoint == "" {
		return Placeholder
	}
	if addr, ok := c.cache.get(loc); ok {
		return addr
	}
	url := fmt.Sprintf("%s/reverse?format=json&lat=%.6f&lon=%.6f", c.Endpoint, loc.Lat, loc.Lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Placeholder
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Placeholder
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Placeholder
	}
	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.DisplayName == "" {
		return Placeholder
	}
	c.cache.set(loc, out.DisplayName)
	return out.DisplayName
}
