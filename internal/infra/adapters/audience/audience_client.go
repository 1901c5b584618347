package audience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/ports/adapter"
)

var _ adapter.AudienceClient = (*HTTPClient)(nil)

// HTTPClient talks to the segmentation service's tag upsert endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(cfg *config.AudienceConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("audience: base_url empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) UpsertTags(ctx context.Context, userID string, tags map[string]string) error {
	reqBody := struct {
		UserID string            `json:"user_id"`
		Tags   map[string]string `json:"tags"`
	}{UserID: userID, Tags: tags}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tags/upsert", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("audience upsert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("audience http %d", resp.StatusCode)
	}
	return nil
}
