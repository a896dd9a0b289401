package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/linquo/push-dispatch/internal/api"
	"github.com/linquo/push-dispatch/internal/dispatch"
	"github.com/linquo/push-dispatch/internal/domain"
	"github.com/linquo/push-dispatch/internal/fcm"
	"github.com/linquo/push-dispatch/internal/ratelimiter"
	"github.com/linquo/push-dispatch/internal/repository"
	"github.com/linquo/push-dispatch/internal/service"
)

type stubGateway struct {
	openErr error
	sendErr error
}

func (g *stubGateway) Open(context.Context) (fcm.Sender, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	return g, nil
}

func (g *stubGateway) Send(context.Context, fcm.Message) error { return g.sendErr }

type env struct {
	router        http.Handler
	notifications *repository.MockNotificationRepository
	tokens        *repository.MockDeviceTokenRepository
	gateway       *stubGateway
}

func newEnv() *env {
	notifications := repository.NewMockNotificationRepository()
	tokens := repository.NewMockDeviceTokenRepository()
	gateway := &stubGateway{}
	logger := zap.NewNop()

	dispatcher := dispatch.NewDispatcher(
		notifications, tokens, gateway,
		ratelimiter.New(10000), 10, logger, dispatch.MetricHooks{},
	)
	svc := service.NewQueueService(notifications, tokens, logger)
	router := api.NewRouter(dispatcher, svc, prometheus.NewRegistry(), logger)

	return &env{router: router, notifications: notifications, tokens: tokens, gateway: gateway}
}

func (e *env) do(method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func newBody(s string) io.Reader { return strings.NewReader(s) }

func TestDispatchEndpoint_EmptyQueue(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/v1/dispatch", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Details *struct{} `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Message != "No pending notifications" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if resp.Details != nil {
		t.Fatal("empty run must not include details")
	}
}

func TestDispatchEndpoint_ProcessedBatch(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	_ = e.notifications.Create(ctx, &domain.Notification{
		ID: "n1", AgentID: "agent-1", Title: "t", Body: "b",
		Status: domain.StatusPending, MaxRetries: 3, CreatedAt: time.Now(),
	})
	_ = e.tokens.Upsert(ctx, &domain.DeviceToken{
		Token: "tok-1", AgentID: "agent-1", Platform: domain.PlatformIOS, IsActive: true,
	})

	rec := e.do(http.MethodPost, "/api/v1/dispatch", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Details struct {
			Total   int `json:"total"`
			Success int `json:"success"`
			Failed  int `json:"failed"`
		} `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Details.Total != 1 || resp.Details.Success != 1 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestDispatchEndpoint_MissingCredentialIs500(t *testing.T) {
	e := newEnv()
	e.gateway.openErr = errors.New("FCM server key not configured")

	rec := e.do(http.MethodPost, "/api/v1/dispatch", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestDispatchEndpoint_CORSPreflight(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodOptions, "/api/v1/dispatch", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on preflight, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty preflight body, got %q", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected permissive origin header, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Fatal("expected allow-headers to be set")
	}
}

func TestEnqueueEndpoint(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/v1/notifications",
		newBody(`{"agent_id":"agent-1","title":"New message","body":"hello"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var n domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if n.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", n.Status)
	}
}

func TestEnqueueEndpoint_ValidationError(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/v1/notifications",
		newBody(`{"agent_id":"","title":"t","body":"b"}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestRegisterDeviceEndpoint(t *testing.T) {
	e := newEnv()

	rec := e.do(http.MethodPost, "/api/v1/devices",
		newBody(`{"agent_id":"agent-1","device_token":"tok-1","platform":"android"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	active, err := e.tokens.ActiveForAgent(context.Background(), "agent-1")
	if err != nil || len(active) != 1 {
		t.Fatalf("expected one active token, got %d (err=%v)", len(active), err)
	}
}
