package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LegacyGateway sends through FCM's legacy HTTP API, authenticated with
// a static server key. The base URL is injected from config so tests can
// point to a local mock.
type LegacyGateway struct {
	baseURL    string
	serverKey  string
	httpClient *http.Client
}

func NewLegacyGateway(baseURL, serverKey string, timeout time.Duration) *LegacyGateway {
	return &LegacyGateway{
		baseURL:   baseURL,
		serverKey: serverKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Open fails fast when no server key is configured; there is no
// handshake with the gateway in the legacy scheme.
func (g *LegacyGateway) Open(context.Context) (Sender, error) {
	if g.serverKey == "" {
		return nil, fmt.Errorf("FCM server key not configured")
	}
	return g, nil
}

// legacySendRequest is the JSON body posted to the legacy send endpoint.
type legacySendRequest struct {
	To               string             `json:"to"`
	Notification     legacyNotification `json:"notification"`
	Data             map[string]string  `json:"data"`
	Priority         string             `json:"priority"`
	ContentAvailable bool               `json:"content_available"`
}

type legacyNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Sound string `json:"sound"`
}

// Send posts one message to the legacy send endpoint.
// Any 2xx status counts as delivered.
func (g *LegacyGateway) Send(ctx context.Context, msg Message) error {
	data := msg.Data
	if data == nil {
		data = map[string]string{}
	}
	body, err := json.Marshal(legacySendRequest{
		To: msg.Token,
		Notification: legacyNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Icon:  "ic_notification",
			Sound: "default",
		},
		Data:             data,
		Priority:         "high",
		ContentAvailable: true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/fcm/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "key="+g.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SendError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// compile-time check that LegacyGateway implements both roles
var (
	_ Gateway = (*LegacyGateway)(nil)
	_ Sender  = (*LegacyGateway)(nil)
)
