package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const messagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// ServiceAccount is the credential bundle for the v1 API.
type ServiceAccount struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string // PEM-encoded PKCS#8 RSA private key
}

// V1Gateway sends through the FCM HTTP v1 API. Each Open signs a fresh
// JWT assertion with the service-account key and exchanges it at the
// OAuth2 token endpoint for a bearer token scoped to that invocation.
type V1Gateway struct {
	account    ServiceAccount
	baseURL    string
	tokenURL   string
	httpClient *http.Client
}

func NewV1Gateway(account ServiceAccount, baseURL, tokenURL string, timeout time.Duration) *V1Gateway {
	return &V1Gateway{
		account:  account,
		baseURL:  baseURL,
		tokenURL: tokenURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Open acquires an OAuth2 access token for this invocation.
func (g *V1Gateway) Open(ctx context.Context) (Sender, error) {
	if g.account.ProjectID == "" || g.account.ClientEmail == "" || g.account.PrivateKey == "" {
		return nil, fmt.Errorf("FCM service account not configured")
	}

	accessToken, err := g.exchange(ctx)
	if err != nil {
		return nil, err
	}

	return &v1Sender{gateway: g, accessToken: accessToken}, nil
}

// exchange signs the JWT-bearer assertion and trades it for an access token.
// The assertion carries a one-hour expiry; the access token is never cached
// beyond the Sender it is handed to.
func (g *V1Gateway) exchange(ctx context.Context) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(g.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse service account key: %w", err)
	}

	now := time.Now()
	assertion := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   g.account.ClientEmail,
		"scope": messagingScope,
		"aud":   g.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	signed, err := assertion.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", signed)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange assertion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, respBody)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}
	return tokenResp.AccessToken, nil
}

// v1Sender holds the bearer token for one dispatch invocation.
type v1Sender struct {
	gateway     *V1Gateway
	accessToken string
}

// v1SendRequest is the JSON body posted to the v1 messages:send endpoint.
type v1SendRequest struct {
	Message v1Message `json:"message"`
}

type v1Message struct {
	Token        string            `json:"token"`
	Notification v1Notification    `json:"notification"`
	Data         map[string]string `json:"data"`
	Android      v1Android         `json:"android"`
	APNS         v1APNS            `json:"apns"`
}

type v1Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type v1Android struct {
	Priority     string                `json:"priority"`
	Notification v1AndroidNotification `json:"notification"`
}

type v1AndroidNotification struct {
	Sound       string `json:"sound"`
	ClickAction string `json:"click_action"`
}

type v1APNS struct {
	Payload v1APNSPayload `json:"payload"`
}

type v1APNSPayload struct {
	APS v1APS `json:"aps"`
}

type v1APS struct {
	Sound string `json:"sound"`
	Badge int    `json:"badge"`
}

func (s *v1Sender) Send(ctx context.Context, msg Message) error {
	data := msg.Data
	if data == nil {
		data = map[string]string{}
	}
	body, err := json.Marshal(v1SendRequest{
		Message: v1Message{
			Token:        msg.Token,
			Notification: v1Notification{Title: msg.Title, Body: msg.Body},
			Data:         data,
			Android: v1Android{
				Priority: "high",
				Notification: v1AndroidNotification{
					Sound:       "default",
					ClickAction: "FLUTTER_NOTIFICATION_CLICK",
				},
			},
			APNS: v1APNS{
				Payload: v1APNSPayload{
					APS: v1APS{Sound: "default", Badge: 1},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/projects/%s/messages:send",
		s.gateway.baseURL, s.gateway.account.ProjectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.gateway.httpClient.Do(req)
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

// compile-time checks
var (
	_ Gateway = (*V1Gateway)(nil)
	_ Sender  = (*v1Sender)(nil)
)
