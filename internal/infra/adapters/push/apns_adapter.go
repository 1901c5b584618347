package push

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stillpoint/internal/config"
	"stillpoint/internal/domain/ports/adapter"
)

var _ adapter.PushSender = (*APNsAdapter)(nil)

// APNsAdapter delivers Apple web push. Requests carry an ES256 provider
// token signed with the team's .p8 key; Apple accepts tokens for up to an
// hour, so one is cached and re-minted shortly before that.
type APNsAdapter struct {
	endpoint string
	topic    string
	teamID   string
	keyID    string
	key      *ecdsa.PrivateKey
	client   *http.Client

	mu          sync.Mutex
	cachedToken string
	mintedAt    time.Time
}

func NewAPNsAdapter(cfg *config.PushConfig) (*APNsAdapter, error) {
	if cfg.APNs.TeamID == "" || cfg.APNs.KeyID == "" || cfg.APNs.KeyPath == "" {
		return nil, errors.New("apns: team_id, key_id and key_path are required")
	}
	pem, err := os.ReadFile(cfg.APNs.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("apns: read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("apns: parse signing key: %w", err)
	}
	endpoint := cfg.APNs.Endpoint
	if endpoint == "" {
		if cfg.APNs.Production {
			endpoint = "https://api.push.apple.com"
		} else {
			endpoint = "https://api.sandbox.push.apple.com"
		}
	}
	return &APNsAdapter{
		endpoint: endpoint,
		topic:    cfg.APNs.Topic,
		teamID:   cfg.APNs.TeamID,
		keyID:    cfg.APNs.KeyID,
		key:      key,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (a *APNsAdapter) providerToken() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cachedToken != "" && time.Since(a.mintedAt) < 50*time.Minute {
		return a.cachedToken, nil
	}
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": a.teamID,
		"iat": now.Unix(),
	})
	tok.Header["kid"] = a.keyID
	signed, err := tok.SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("apns: sign provider token: %w", err)
	}
	a.cachedToken = signed
	a.mintedAt = now
	return signed, nil
}

func (a *APNsAdapter) Send(ctx context.Context, token string, payload adapter.PushPayload) error {
	bearer, err := a.providerToken()
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": payload.Title, "body": payload.Body},
		},
	}
	for k, v := range payload.Data {
		body[k] = v
	}
	b, _ := json.Marshal(body)

	url := fmt.Sprintf("%s/3/device/%s", a.endpoint, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", a.topic)
	req.Header.Set("apns-push-type", "alert")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("apns send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(raw, &apiErr)

	// 410 Gone and BadDeviceToken mean the subscription is dead for good.
	if resp.StatusCode == http.StatusGone ||
		apiErr.Reason == "BadDeviceToken" || apiErr.Reason == "Unregistered" {
		return fmt.Errorf("apns http %d (%s): %w", resp.StatusCode, apiErr.Reason, adapter.ErrTokenInvalid)
	}
	return fmt.Errorf("apns http %d: %s", resp.StatusCode, apiErr.Reason)
}
