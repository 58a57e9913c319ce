package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/pkg/circuitbreaker"
)

const defaultEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMConfig tunes the HTTP client around the provider call.
type FCMConfig struct {
	Endpoint        string
	RequestTimeout  time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// settingsSource resolves provider credentials for one send.
type settingsSource interface {
	Get(ctx context.Context) (*model.PushSettings, error)
}

type fcmGateway struct {
	settings settingsSource
	endpoint string
	client   *http.Client
	cb       *circuitbreaker.CircuitBreaker
}

// NewFCMGateway builds a gateway against the FCM legacy HTTP API. Credentials
// come from the injected settings provider on every send, so a rotated server
// key takes effect without a restart.
func NewFCMGateway(settings settingsSource, cfg FCMConfig) Gateway {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &fcmGateway{
		settings: settings,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "push-gateway",
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerTimeout,
		}),
	}
}

type fcmRequest struct {
	To           string                 `json:"to"`
	Notification Notification           `json:"notification"`
	Data         map[string]interface{} `json:"data"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

func (g *fcmGateway) Send(ctx context.Context, deviceToken string, payload *Payload) *Result {
	settings, err := g.settings.Get(ctx)
	if err != nil {
		return &Result{Success: false, Message: err.Error()}
	}

	endpoint := g.endpoint
	if settings.Endpoint != "" {
		endpoint = settings.Endpoint
	}

	body, err := json.Marshal(fcmRequest{
		To:           deviceToken,
		Notification: payload.Notification,
		Data:         payload.Data,
	})
	if err != nil {
		return &Result{Success: false, Message: fmt.Sprintf("failed to marshal payload: %v", err)}
	}

	var result *Result
	err = g.cb.Execute(func() error {
		res, sendErr := g.post(ctx, endpoint, settings.ServerKey, body)
		result = res
		return sendErr
	})
	if err != nil {
		// Network-level or breaker failures count against the recipient,
		// never against the whole request.
		return &Result{Success: false, Message: err.Error()}
	}

	return result
}

// post returns an error only on transport failure; provider rejections are
// reported through the Result so they do not trip the breaker.
func (g *fcmGateway) post(ctx context.Context, endpoint, serverKey string, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+serverKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{
			Success: false,
			Message: fmt.Sprintf("provider returned status %d", resp.StatusCode),
		}, nil
	}

	var parsed fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return &Result{Success: false, Message: fmt.Sprintf("failed to decode provider response: %v", err)}, nil
	}

	if parsed.Failure > 0 {
		msg := "delivery rejected"
		if len(parsed.Results) > 0 && parsed.Results[0].Error != "" {
			msg = parsed.Results[0].Error
		}
		return &Result{Success: false, Message: msg}, nil
	}

	return &Result{Success: true}, nil
}
