package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FCMClient posts messages to an FCM HTTPv1-style endpoint. "Delivered"
// means accepted by the gateway; device receipt is never awaited.
type FCMClient struct {
	Endpoint string
	Key      string
	HTTP     *http.Client
}

func NewFCMClient(endpoint, key string) *FCMClient {
	return &FCMClient{Endpoint: endpoint, Key: key, HTTP: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMClient) Send(ctx context.Context, token string, payload Payload) error {
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"token": token,
			"data":  payload,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fcm: gateway status %d", resp.StatusCode)
	}
	return nil
}
