package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/ports/adapter"
)

var _ adapter.PushSender = (*FCMAdapter)(nil)

// FCMAdapter speaks the FCM HTTP v1 send endpoint. The OAuth bearer token is
// injected via config; minting it belongs to the deployment, not this service.
type FCMAdapter struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewFCMAdapter(cfg *config.PushConfig) (*FCMAdapter, error) {
	if cfg.FCM.ProjectID == "" {
		return nil, errors.New("fcm: project_id empty")
	}
	endpoint := cfg.FCM.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", cfg.FCM.ProjectID)
	}
	return &FCMAdapter{
		endpoint: endpoint,
		token:    cfg.FCM.AccessToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type fcmMessage struct {
	Message struct {
		Token        string            `json:"token"`
		Notification map[string]string `json:"notification"`
		Data         map[string]string `json:"data,omitempty"`
	} `json:"message"`
}

func (f *FCMAdapter) Send(ctx context.Context, token string, payload adapter.PushPayload) error {
	var msg fcmMessage
	msg.Message.Token = token
	msg.Message.Notification = map[string]string{"title": payload.Title, "body": payload.Body}
	msg.Message.Data = payload.Data

	b, _ := json.Marshal(msg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Error struct {
			Status string `json:"status"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	// UNREGISTERED and NOT_FOUND mean the token is dead for good.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone ||
		apiErr.Error.Status == "UNREGISTERED" || apiErr.Error.Status == "INVALID_ARGUMENT" {
		return fmt.Errorf("fcm http %d (%s): %w", resp.StatusCode, apiErr.Error.Status, adapter.ErrTokenInvalid)
	}
	return fmt.Errorf("fcm http %d: %s", resp.StatusCode, apiErr.Error.Status)
}
