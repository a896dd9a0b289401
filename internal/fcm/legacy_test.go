package fcm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/linquo/push-dispatch/internal/fcm"
)

func TestLegacyGateway_OpenFailsWithoutKey(t *testing.T) {
	g := fcm.NewLegacyGateway("http://unused", "", time.Second)
	if _, err := g.Open(context.Background()); err == nil {
		t.Fatal("expected an error when the server key is missing")
	}
}

func TestLegacyGateway_Send(t *testing.T) {
	var captured struct {
		path    string
		auth    string
		payload map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured.payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := fcm.NewLegacyGateway(srv.URL, "server-key-123", time.Second)
	sender, err := g.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	err = sender.Send(context.Background(), fcm.Message{
		Token: "device-token-1",
		Title: "New message",
		Body:  "A customer is waiting",
		Data:  map[string]string{"conversation_id": "c1"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if captured.path != "/fcm/send" {
		t.Fatalf("expected /fcm/send, got %s", captured.path)
	}
	if captured.auth != "key=server-key-123" {
		t.Fatalf("unexpected auth header: %s", captured.auth)
	}
	if captured.payload["to"] != "device-token-1" {
		t.Fatalf("unexpected to: %v", captured.payload["to"])
	}
	if captured.payload["priority"] != "high" {
		t.Fatalf("expected high priority, got %v", captured.payload["priority"])
	}
	if captured.payload["content_available"] != true {
		t.Fatal("expected content_available=true")
	}
	notification, _ := captured.payload["notification"].(map[string]any)
	if notification["title"] != "New message" || notification["sound"] != "default" {
		t.Fatalf("unexpected notification block: %v", notification)
	}
	data, _ := captured.payload["data"].(map[string]any)
	if data["conversation_id"] != "c1" {
		t.Fatalf("unexpected data block: %v", data)
	}
}

func TestLegacyGateway_SendRejections(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		permanent bool
	}{
		{"bad request is permanent", http.StatusBadRequest, true},
		{"not found is permanent", http.StatusNotFound, true},
		{"unauthorized is transient", http.StatusUnauthorized, false},
		{"server error is transient", http.StatusInternalServerError, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			g := fcm.NewLegacyGateway(srv.URL, "key", time.Second)
			sender, _ := g.Open(context.Background())
			err := sender.Send(context.Background(), fcm.Message{Token: "tok"})

			var sendErr *fcm.SendError
			if !errors.As(err, &sendErr) {
				t.Fatalf("expected *SendError, got %v", err)
			}
			if sendErr.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, sendErr.StatusCode)
			}
			if sendErr.Permanent() != tc.permanent {
				t.Fatalf("expected Permanent()=%v for status %d", tc.permanent, tc.status)
			}
		})
	}
}

func TestLegacyGateway_TransportErrorIsNotSendError(t *testing.T) {
	g := fcm.NewLegacyGateway("http://127.0.0.1:1", "key", 100*time.Millisecond)
	sender, _ := g.Open(context.Background())
	err := sender.Send(context.Background(), fcm.Message{Token: "tok"})
	if err == nil {
		t.Fatal("expected a transport error")
	}
	var sendErr *fcm.SendError
	if errors.As(err, &sendErr) {
		t.Fatal("transport failures must not be classified as gateway rejections")
	}
}
