package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/partner-dispatch/internal/models"
	"github.com/example/partner-dispatch/internal/observability"
)

// Client fires the partner-onboarded webhook to the operator-configured
// automation endpoint. Fire-and-forget: delivery failures are logged and
// never affect dispatch.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	Logger   *slog.Logger
}

func NewClient(endpoint string, logger *slog.Logger) *Client {
	return &Client{Endpoint: endpoint, HTTP: &http.Client{Timeout: 3 * time.Second}, Logger: logger}
}

func eventName(k models.Kind) string {
	switch k {
	case models.KindGarageJob:
		return "new_garage_partner"
	case models.KindEmergencyCase:
		return "new_emergency_partner"
	default:
		return "new_ride_partner"
	}
}

type body struct {
	Event string         `json:"event"`
	Data  models.Partner `json:"data"`
}

// PartnerOnboarded launches the webhook in the background and returns
// immediately.
func (c *Client) PartnerOnboarded(p models.Partner) {
	if c == nil || c.Endpoint == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.send(ctx, p); err != nil {
			observability.WebhookFailuresTotal.Inc()
			c.logger().Warn("partner webhook failed", "partner_id", p.ID, "error", err)
		}
	}()
}

func (c *Client) send(ctx context.Context, p models.Partner) error {
	b, err := json.Marshal(body{Event: eventName(p.Kind), Data: p})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
