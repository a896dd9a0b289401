package fcm_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linquo/push-dispatch/internal/fcm"
)

func testServiceAccount(t *testing.T) (fcm.ServiceAccount, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	return fcm.ServiceAccount{
		ProjectID:   "test-project",
		ClientEmail: "worker@test-project.iam.gserviceaccount.com",
		PrivateKey:  string(pemKey),
	}, &key.PublicKey
}

func TestV1Gateway_OpenFailsWithoutCredential(t *testing.T) {
	g := fcm.NewV1Gateway(fcm.ServiceAccount{}, "http://unused", "http://unused", time.Second)
	if _, err := g.Open(context.Background()); err == nil {
		t.Fatal("expected an error when the service account is incomplete")
	}
}

func TestV1Gateway_OpenExchangesSignedAssertion(t *testing.T) {
	account, pubKey := testServiceAccount(t)

	var assertion string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			t.Errorf("unexpected grant_type: %s", got)
		}
		assertion = r.PostFormValue("assertion")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "bearer-abc"})
	}))
	defer tokenSrv.Close()

	g := fcm.NewV1Gateway(account, "http://unused", tokenSrv.URL, time.Second)
	if _, err := g.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	// The assertion must verify against the service account key and carry
	// the messaging scope with a one-hour expiry window.
	parsed, err := jwt.Parse(assertion, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			t.Fatalf("unexpected signing method: %v", token.Header["alg"])
		}
		return pubKey, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("assertion did not verify: %v", err)
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if claims["iss"] != account.ClientEmail {
		t.Fatalf("unexpected iss: %v", claims["iss"])
	}
	if claims["scope"] != "https://www.googleapis.com/auth/firebase.messaging" {
		t.Fatalf("unexpected scope: %v", claims["scope"])
	}
	if claims["aud"] != tokenSrv.URL {
		t.Fatalf("unexpected aud: %v", claims["aud"])
	}
	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	if exp-iat != 3600 {
		t.Fatalf("expected one-hour expiry, got %d seconds", exp-iat)
	}
}

func TestV1Gateway_OpenRejectedExchange(t *testing.T) {
	account, _ := testServiceAccount(t)
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokenSrv.Close()

	g := fcm.NewV1Gateway(account, "http://unused", tokenSrv.URL, time.Second)
	if _, err := g.Open(context.Background()); err == nil {
		t.Fatal("expected an error when the token endpoint rejects the assertion")
	}
}

func TestV1Gateway_Send(t *testing.T) {
	account, _ := testServiceAccount(t)

	var captured struct {
		path    string
		auth    string
		payload map[string]any
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "bearer-abc"})
	})
	mux.HandleFunc("/v1/projects/test-project/messages:send", func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured.payload)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := fcm.NewV1Gateway(account, srv.URL, srv.URL+"/token", time.Second)
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

	if captured.auth != "Bearer bearer-abc" {
		t.Fatalf("unexpected auth header: %s", captured.auth)
	}

	message, _ := captured.payload["message"].(map[string]any)
	if message["token"] != "device-token-1" {
		t.Fatalf("unexpected token: %v", message["token"])
	}
	notification, _ := message["notification"].(map[string]any)
	if notification["title"] != "New message" || notification["body"] != "A customer is waiting" {
		t.Fatalf("unexpected notification block: %v", notification)
	}
	android, _ := message["android"].(map[string]any)
	if android["priority"] != "high" {
		t.Fatalf("expected android priority high, got %v", android["priority"])
	}
	apns, _ := message["apns"].(map[string]any)
	payload, _ := apns["payload"].(map[string]any)
	aps, _ := payload["aps"].(map[string]any)
	if aps["sound"] != "default" {
		t.Fatalf("unexpected aps block: %v", aps)
	}
}

func TestV1Gateway_SendRejection(t *testing.T) {
	account, _ := testServiceAccount(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "bearer-abc"})
	})
	mux.HandleFunc("/v1/projects/test-project/messages:send", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"status":"NOT_FOUND"}}`, http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := fcm.NewV1Gateway(account, srv.URL, srv.URL+"/token", time.Second)
	sender, err := g.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	err = sender.Send(context.Background(), fcm.Message{Token: "gone"})
	sendErr, ok := err.(*fcm.SendError)
	if !ok {
		t.Fatalf("expected *SendError, got %v", err)
	}
	if !sendErr.Permanent() {
		t.Fatal("a 404 from messages:send must classify as permanent")
	}
}
