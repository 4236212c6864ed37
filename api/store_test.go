package api

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

// memStore is an in-memory db.Store for handler tests.
type memStore struct {
	mu            sync.Mutex
	users         map[string]model.User
	incidents     map[string]model.Incident
	typhoons      map[string]model.Typhoon
	subscriptions map[string]model.Subscription
	logs          []model.NotificationLog
	events        []model.Event
	checks        []model.StatusCheck
	pingErr       error

	incidentLists atomic.Int64
	// gate, when set, blocks ListIncidents until closed. started receives
	// one value per blocked call.
	gate    chan struct{}
	started chan struct{}
}

var _ db.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]model.User),
		incidents:     make(map[string]model.Incident),
		typhoons:      make(map[string]model.Typhoon),
		subscriptions: make(map[string]model.Subscription),
	}
}

func within(t, since, until time.Time) bool {
	if !since.IsZero() && t.Before(since) {
		return false
	}
	if !until.IsZero() && t.After(until) {
		return false
	}
	return true
}

func newer(at time.Time, id string, than time.Time, thanID string) bool {
	if !at.Equal(than) {
		return at.After(than)
	}
	return id > thanID
}

func page[T any](list []T, skip, limit int) []T {
	if skip >= len(list) {
		return nil
	}
	list = list[skip:]
	if limit = db.ClampLimit(limit); len(list) > limit {
		list = list[:limit]
	}
	return list
}

func (s *memStore) CreateUser(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return db.ErrConflict
	}
	s.users[u.Username] = u
	return nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return model.User{}, db.ErrNotFound
	}
	return u, nil
}

func (s *memStore) CountUsers(ctx context.Context, since, until time.Time) (int64, error) {
	list, err := s.ListUsersCreated(ctx, since, until)
	return int64(len(list)), err
}

func (s *memStore) ListUsersCreated(_ context.Context, since, until time.Time) ([]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.users {
		if within(u.CreatedAt, since, until) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) CreateIncident(_ context.Context, inc model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[inc.ID] = inc
	return nil
}

func (s *memStore) GetIncident(_ context.Context, id string) (model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return model.Incident{}, db.ErrNotFound
	}
	return inc, nil
}

func (s *memStore) ListIncidents(ctx context.Context, f db.IncidentFilter) ([]model.Incident, error) {
	s.incidentLists.Add(1)
	if s.gate != nil {
		s.started <- struct{}{}
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Incident
	for _, inc := range s.incidents {
		switch {
		case f.Status != "" && inc.Status != f.Status:
		case f.Priority != "" && inc.Priority != f.Priority:
		case f.ReportedBy != "" && inc.FullName != f.ReportedBy:
		case !within(inc.CreatedAt, f.Since, f.Until):
		default:
			out = append(out, inc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return page(out, f.Skip, f.Limit), nil
}

func (s *memStore) UpdateIncident(_ context.Context, inc model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; !ok {
		return db.ErrNotFound
	}
	s.incidents[inc.ID] = inc
	return nil
}

func (s *memStore) DeleteIncident(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.incidents, id)
	return nil
}

func (s *memStore) CountIncidents(_ context.Context, since, until time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, inc := range s.incidents {
		if within(inc.CreatedAt, since, until) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CreateTyphoon(_ context.Context, t model.Typhoon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typhoons[t.ID] = t
	return nil
}

func (s *memStore) GetTyphoon(_ context.Context, id string) (model.Typhoon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.typhoons[id]
	if !ok {
		return model.Typhoon{}, db.ErrNotFound
	}
	return t, nil
}

func (s *memStore) ListTyphoons(_ context.Context, f db.TyphoonFilter) ([]model.Typhoon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Typhoon
	for _, t := range s.typhoons {
		if f.Status == "" || t.Status == f.Status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Skip, f.Limit), nil
}

func (s *memStore) UpdateTyphoon(_ context.Context, t model.Typhoon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.typhoons[t.ID]; !ok {
		return db.ErrNotFound
	}
	s.typhoons[t.ID] = t
	return nil
}

func (s *memStore) AppendTrackingPoint(_ context.Context, id string, p model.TrackingPoint, editor string, at time.Time) (model.Typhoon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.typhoons[id]
	if !ok {
		return model.Typhoon{}, db.ErrNotFound
	}
	t.TrackingPath = append(slices.Clone(t.TrackingPath), p)
	t.UpdatedBy = editor
	t.UpdatedAt = &at
	s.typhoons[id] = t
	return t, nil
}

func (s *memStore) DeleteTyphoon(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.typhoons[id]; !ok {
		return db.ErrNotFound
	}
	delete(s.typhoons, id)
	return nil
}

func (s *memStore) UpsertSubscription(_ context.Context, sub model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.Endpoint] = sub
	return nil
}

func (s *memStore) DeactivateSubscription(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[endpoint]
	if !ok || !sub.Active {
		return db.ErrNotFound
	}
	sub.Active = false
	s.subscriptions[endpoint] = sub
	return nil
}

func (s *memStore) ListSubscriptions(_ context.Context, f db.SubscriptionFilter) ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Subscription
	for _, sub := range s.subscriptions {
		if f.ActiveOnly && !sub.Active {
			continue
		}
		if len(f.UserIDs) > 0 && !slices.Contains(f.UserIDs, sub.UserID) {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *memStore) ActivePreferences(_ context.Context, userID string) (model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub.Active && sub.UserID == userID {
			return sub.Preferences, nil
		}
	}
	return model.Preferences{}, db.ErrNotFound
}

func (s *memStore) UpdatePreferences(_ context.Context, userID string, p model.Preferences) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, sub := range s.subscriptions {
		if sub.Active && sub.UserID == userID {
			sub.Preferences = p
			s.subscriptions[k] = sub
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	list, err := s.ListSubscriptions(ctx, db.SubscriptionFilter{ActiveOnly: true})
	return int64(len(list)), err
}

func (s *memStore) CreateNotificationLog(_ context.Context, l model.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
	return nil
}

func (s *memStore) ListNotificationLogs(_ context.Context, limit int) ([]model.NotificationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.logs)
	slices.Reverse(out)
	return page(out, 0, limit), nil
}

func (s *memStore) CreateEvent(_ context.Context, e model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memStore) ListEvents(_ context.Context, f db.EventFilter) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, e := range s.events {
		if within(e.Timestamp, f.Since, f.Until) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].Timestamp, out[i].ID, out[j].Timestamp, out[j].ID) })
	return page(out, f.Skip, f.Limit), nil
}

func (s *memStore) CountEvents(_ context.Context, since, until time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.events {
		if within(e.Timestamp, since, until) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) DistinctEventUsers(_ context.Context, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, e := range s.events {
		if e.UserID != "" && within(e.Timestamp, since, time.Time{}) {
			seen[e.UserID] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (s *memStore) CreateStatusCheck(_ context.Context, sc model.StatusCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, sc)
	return nil
}

func (s *memStore) ListStatusChecks(_ context.Context, limit int) ([]model.StatusCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(slices.Clone(s.checks), 0, limit), nil
}

func (s *memStore) Migrate(context.Context) error { return nil }

func (s *memStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *memStore) Stats(context.Context) (db.Stats, error) {
	return db.Stats{Driver: "memory", Collections: 7}, nil
}

func (s *memStore) Close(context.Context) error { return nil }
