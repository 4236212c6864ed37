package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/adeilh/emergency-backend/model"
)

func testSubscription(t *testing.T, endpoint string) model.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}
	return model.Subscription{
		Endpoint: endpoint,
		Keys: model.SubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(secret),
		},
	}
}

func newTestSender(t *testing.T) *WebPush {
	t.Helper()
	priv, pub, err := GenerateKeys()
	if err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	s, ok := New(Config{PublicKey: pub, PrivateKey: priv}).(*WebPush)
	if !ok {
		t.Fatalf("New() did not return a web push sender")
	}
	return s
}

func TestWebPushSend(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") == "" {
			t.Errorf("missing VAPID authorization header")
		}
		if r.Header.Get("Content-Encoding") != "aes128gcm" {
			t.Errorf("Content-Encoding = %q", r.Header.Get("Content-Encoding"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := newTestSender(t)
	if err := sender.Send(context.Background(), testSubscription(t, srv.URL+"/push/abc"), []byte(`{"title":"t"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("push service hits = %d, want 1", hits.Load())
	}
}

func TestWebPushSendGone(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		status := status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		sender := newTestSender(t)
		err := sender.Send(context.Background(), testSubscription(t, srv.URL), []byte("x"))
		srv.Close()
		if !errors.Is(err, ErrSubscriptionGone) {
			t.Fatalf("Send() with %d error = %v, want ErrSubscriptionGone", status, err)
		}
	}
}

func TestWebPushSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newTestSender(t).Send(context.Background(), testSubscription(t, srv.URL), []byte("x"))
	if err == nil || errors.Is(err, ErrSubscriptionGone) {
		t.Fatalf("Send() error = %v, want a transient failure", err)
	}
}

func TestDisabledSender(t *testing.T) {
	s := New(Config{PublicKey: "pub"})
	if s.PublicKey() != "pub" {
		t.Fatalf("PublicKey() = %q", s.PublicKey())
	}
	if err := s.Send(context.Background(), model.Subscription{}, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Send() error = %v, want ErrDisabled", err)
	}
}
