// Package push delivers Web Push notifications signed with VAPID keys.
package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/adeilh/emergency-backend/model"
)

var (
	// ErrSubscriptionGone means the push service no longer knows the
	// endpoint (404 or 410) and the subscription should be deactivated.
	ErrSubscriptionGone = errors.New("push: subscription gone")
	ErrDisabled         = errors.New("push: sender not configured")
)

const defaultSubject = "mailto:admin@emergency.com"

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub model.Subscription, payload []byte) error
	PublicKey() string
}

// Config carries the VAPID key pair.
type Config struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        time.Duration
	HTTPClient webpush.HTTPClient
}

// New returns a web push sender, or a disabled sender when either key is
// missing.
func New(cfg Config) Sender {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return disabled{publicKey: cfg.PublicKey}
	}
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &WebPush{cfg: cfg}
}

// WebPush sends through webpush-go.
type WebPush struct {
	cfg Config
}

func (w *WebPush) PublicKey() string { return w.cfg.PublicKey }

func (w *WebPush) Send(ctx context.Context, sub model.Subscription, payload []byte) error {
	opts := &webpush.Options{
		Subscriber:      w.cfg.Subject,
		VAPIDPublicKey:  w.cfg.PublicKey,
		VAPIDPrivateKey: w.cfg.PrivateKey,
		TTL:             int(w.cfg.TTL / time.Second),
		Urgency:         webpush.UrgencyHigh,
	}
	if w.cfg.HTTPClient != nil {
		opts.HTTPClient = w.cfg.HTTPClient
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Keys.Auth,
			P256dh: sub.Keys.P256dh,
		},
	}, opts)
	if err != nil {
		return fmt.Errorf("push: send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type disabled struct{ publicKey string }

func (d disabled) PublicKey() string { return d.publicKey }

func (disabled) Send(context.Context, model.Subscription, []byte) error { return ErrDisabled }

// GenerateKeys creates a new VAPID key pair for the keygen command.
func GenerateKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}

// Enabled reports whether s can actually deliver notifications.
func Enabled(s Sender) bool {
	_, off := s.(disabled)
	return s != nil && !off
}
