package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/internal/push"
	"github.com/adeilh/emergency-backend/model"
)

// pushConcurrency bounds parallel deliveries of one broadcast.
const pushConcurrency = 16

type pushPayload struct {
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Icon      string         `json:"icon"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

func (a *API) subscribe(c httpx.Context) error {
	var in model.SubscriptionCreate
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return a.fail(c, err, "")
	}
	if err := a.store.UpsertSubscription(c.Request().Context(), in.Materialize(a.now())); err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, map[string]any{
		"success":          true,
		"message":          "Successfully subscribed to push notifications",
		"vapid_public_key": a.push.PublicKey(),
	})
}

func (a *API) unsubscribe(c httpx.Context) error {
	endpoint := c.QueryParam("endpoint")
	if endpoint == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "endpoint is required")
	}
	if err := a.store.DeactivateSubscription(c.Request().Context(), endpoint); err != nil {
		return a.fail(c, err, "Subscription not found")
	}
	return c.JSON(httpx.StatusOK, map[string]any{"success": true, "message": "Successfully unsubscribed"})
}

// broadcast is the outcome of one send request.
type broadcast struct {
	Success bool   `json:"success"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

func (a *API) sendNotification(c httpx.Context) error {
	p, _ := principal(c)
	var in model.NotificationSend
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return a.fail(c, err, "")
	}
	if !push.Enabled(a.push) {
		return httpx.HTTPError(httpx.StatusServiceUnavailable, "Push notifications are not configured")
	}

	ctx := c.Request().Context()
	subs, err := a.store.ListSubscriptions(ctx, db.SubscriptionFilter{ActiveOnly: true, UserIDs: in.TargetUsers})
	if err != nil {
		return a.fail(c, err, "")
	}
	recipients := subs[:0]
	for _, s := range subs {
		if s.Preferences.Allows(in.NotificationType) {
			recipients = append(recipients, s)
		}
	}
	if len(recipients) == 0 {
		return c.JSON(httpx.StatusOK, broadcast{Success: true, Message: "No active subscriptions found"})
	}

	payload, err := json.Marshal(pushPayload{
		Title:     in.Title,
		Body:      in.Body,
		Icon:      in.Icon,
		Data:      in.Data,
		Timestamp: a.now().UTC().Format(timeLayout),
	})
	if err != nil {
		return a.fail(c, err, "")
	}

	sent, failed := a.deliver(ctx, recipients, payload)

	entry := model.NotificationLog{
		ID:               model.NewID(),
		Title:            in.Title,
		Body:             in.Body,
		NotificationType: in.NotificationType,
		SentBy:           p.User.ID,
		SentCount:        sent,
		FailedCount:      failed,
		Timestamp:        a.now(),
	}
	if err := a.store.CreateNotificationLog(ctx, entry); err != nil {
		a.log.Errorj(log.JSON{"event": "notification_log_failed", "error": err.Error()})
	}
	a.log.Infoj(log.JSON{
		"event":  "notification_sent",
		"type":   in.NotificationType,
		"sent":   sent,
		"failed": failed,
		"by":     p.User.Username,
	})
	return c.JSON(httpx.StatusOK, broadcast{
		Success: true,
		Sent:    sent,
		Failed:  failed,
		Message: fmt.Sprintf("Notification sent to %d users", sent),
	})
}

// deliver pushes payload to every recipient concurrently. Subscriptions the
// push service reports as gone are deactivated.
func (a *API) deliver(ctx context.Context, subs []model.Subscription, payload []byte) (sent, failed int) {
	var delivered, rejected atomic.Int64
	var g errgroup.Group
	g.SetLimit(pushConcurrency)
	for _, s := range subs {
		s := s
		g.Go(func() error {
			err := a.push.Send(ctx, s, payload)
			if err == nil {
				delivered.Add(1)
				return nil
			}
			rejected.Add(1)
			if errors.Is(err, push.ErrSubscriptionGone) {
				if derr := a.store.DeactivateSubscription(ctx, s.Endpoint); derr != nil && !errors.Is(derr, db.ErrNotFound) {
					a.log.Warnj(log.JSON{"event": "deactivate_failed", "endpoint": s.Endpoint, "error": derr.Error()})
				}
				return nil
			}
			a.log.Warnj(log.JSON{"event": "push_failed", "endpoint": s.Endpoint, "error": err.Error()})
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load()), int(rejected.Load())
}

func (a *API) getPreferences(c httpx.Context) error {
	prefs, err := a.store.ActivePreferences(c.Request().Context(), c.Param("user_id"))
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(httpx.StatusOK, model.DefaultPreferences())
	}
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, prefs)
}

func (a *API) updatePreferences(c httpx.Context) error {
	var in model.PreferencesUpdate
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if in.UserID == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "user_id is required")
	}
	n, err := a.store.UpdatePreferences(c.Request().Context(), in.UserID, in.Preferences)
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, map[string]any{
		"success":       true,
		"message":       "Preferences updated successfully",
		"updated_count": n,
	})
}

func (a *API) notificationHistory(c httpx.Context) error {
	limit, err := queryInt(c, "limit", 50, 1, db.MaxLimit)
	if err != nil {
		return err
	}
	logs, err := a.store.ListNotificationLogs(c.Request().Context(), limit)
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, nonNil(logs))
}

func (a *API) vapidPublicKey(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string]string{"publicKey": a.push.PublicKey()})
}
