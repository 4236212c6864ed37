package api

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/model"
)

const (
	timeLayout = time.RFC3339Nano
	dayLayout  = "2006-01-02"
	maxDays    = 365

	// exportLimit bounds the rows of each kind in an export.
	exportLimit = 10000
)

// DateRange is the window an aggregate covers.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  int       `json:"days,omitempty"`
}

type Overview struct {
	TotalIncidents int       `json:"total_incidents"`
	TotalNewUsers  int       `json:"total_new_users"`
	TotalEvents    int       `json:"total_events"`
	DateRange      DateRange `json:"date_range"`
}

type IncidentBreakdown struct {
	ByStatus   map[string]int `json:"by_status"`
	ByType     map[string]int `json:"by_type"`
	DailyTrend map[string]int `json:"daily_trend"`
}

type UserActivity struct {
	DailyPageViews map[string]int `json:"daily_page_views"`
	EventTypes     map[string]int `json:"event_types"`
}

type Geographic struct {
	GeotaggedIncidents int `json:"geotagged_incidents"`
	TotalIncidents     int `json:"total_incidents"`
}

// Dashboard is the combined overview served to the admin dashboard.
type Dashboard struct {
	Overview     Overview          `json:"overview"`
	Incidents    IncidentBreakdown `json:"incidents"`
	UserActivity UserActivity      `json:"user_activity"`
	Geographic   Geographic        `json:"geographic"`
}

// IncidentReport breaks incidents down by type, status and hour of day.
type IncidentReport struct {
	Total     int            `json:"total"`
	ByType    map[string]int `json:"by_type"`
	ByStatus  map[string]int `json:"by_status"`
	ByHour    map[int]int    `json:"by_hour"`
	DateRange DateRange      `json:"date_range"`
}

// UserReport summarises registrations and event activity.
type UserReport struct {
	TotalNewUsers      int            `json:"total_new_users"`
	TotalActiveUsers   int            `json:"total_active_users"`
	DailyRegistrations map[string]int `json:"daily_registrations"`
	EventBreakdown     map[string]int `json:"event_breakdown"`
	DateRange          DateRange      `json:"date_range"`
}

func (a *API) window(days int) DateRange {
	end := a.now().UTC()
	return DateRange{Start: end.AddDate(0, 0, -days), End: end, Days: days}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// scan pages through list in db.MaxLimit batches and hands every row to
// visit. It stops at a short page or once maxRows rows were visited;
// maxRows <= 0 means no bound.
func scan[T any](ctx context.Context, maxRows int, list func(ctx context.Context, skip, limit int) ([]T, error), visit func(T)) error {
	seen := 0
	for {
		limit := db.MaxLimit
		if maxRows > 0 && maxRows-seen < limit {
			limit = maxRows - seen
		}
		rows, err := list(ctx, seen, limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			visit(row)
		}
		seen += len(rows)
		if len(rows) < limit || (maxRows > 0 && seen >= maxRows) {
			return nil
		}
	}
}

func (a *API) eachIncident(ctx context.Context, r DateRange, maxRows int, visit func(model.Incident)) error {
	return scan(ctx, maxRows, func(ctx context.Context, skip, limit int) ([]model.Incident, error) {
		return a.store.ListIncidents(ctx, db.IncidentFilter{Since: r.Start, Until: r.End, Skip: skip, Limit: limit})
	}, visit)
}

func (a *API) eachEvent(ctx context.Context, r DateRange, maxRows int, visit func(model.Event)) error {
	return scan(ctx, maxRows, func(ctx context.Context, skip, limit int) ([]model.Event, error) {
		return a.store.ListEvents(ctx, db.EventFilter{Since: r.Start, Until: r.End, Skip: skip, Limit: limit})
	}, visit)
}

func (a *API) buildDashboard(ctx context.Context, days int) (Dashboard, error) {
	r := a.window(days)
	d := Dashboard{
		Overview: Overview{DateRange: r},
		Incidents: IncidentBreakdown{
			ByStatus:   map[string]int{},
			ByType:     map[string]int{},
			DailyTrend: map[string]int{},
		},
		UserActivity: UserActivity{
			DailyPageViews: map[string]int{},
			EventTypes:     map[string]int{},
		},
	}
	var incidents, users, events int64

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		incidents, err = a.store.CountIncidents(ctx, r.Start, r.End)
		return err
	})
	g.Go(func() (err error) {
		users, err = a.store.CountUsers(ctx, r.Start, r.End)
		return err
	})
	g.Go(func() (err error) {
		events, err = a.store.CountEvents(ctx, r.Start, r.End)
		return err
	})
	g.Go(func() error {
		return a.eachIncident(ctx, r, 0, func(inc model.Incident) {
			d.Incidents.ByStatus[orDefault(inc.Status, model.IncidentSubmitted)]++
			d.Incidents.ByType[orDefault(inc.IncidentType, "other")]++
			d.Incidents.DailyTrend[inc.CreatedAt.UTC().Format(dayLayout)]++
			if inc.Location.Geotagged() {
				d.Geographic.GeotaggedIncidents++
			}
		})
	})
	g.Go(func() error {
		return a.eachEvent(ctx, r, 0, func(e model.Event) {
			d.UserActivity.EventTypes[orDefault(e.EventType, "unknown")]++
			if e.EventType == model.EventPageView {
				d.UserActivity.DailyPageViews[e.Timestamp.UTC().Format(dayLayout)]++
			}
		})
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	d.Overview.TotalIncidents = int(incidents)
	d.Overview.TotalNewUsers = int(users)
	d.Overview.TotalEvents = int(events)
	d.Geographic.TotalIncidents = int(incidents)
	return d, nil
}

func (a *API) buildIncidentReport(ctx context.Context, days int) (IncidentReport, error) {
	r := a.window(days)
	r.Days = 0
	rep := IncidentReport{
		ByType:    map[string]int{},
		ByStatus:  map[string]int{},
		ByHour:    map[int]int{},
		DateRange: r,
	}
	err := a.eachIncident(ctx, r, 0, func(inc model.Incident) {
		rep.Total++
		rep.ByType[orDefault(inc.IncidentType, "other")]++
		rep.ByStatus[orDefault(inc.Status, model.IncidentSubmitted)]++
		rep.ByHour[inc.CreatedAt.UTC().Hour()]++
	})
	if err != nil {
		return IncidentReport{}, err
	}
	return rep, nil
}

func (a *API) buildUserReport(ctx context.Context, days int) (UserReport, error) {
	r := a.window(days)
	r.Days = 0
	rep := UserReport{
		DailyRegistrations: map[string]int{},
		EventBreakdown:     map[string]int{},
		DateRange:          r,
	}
	var users []model.User
	active := make(map[string]struct{})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = a.store.ListUsersCreated(ctx, r.Start, r.End)
		return err
	})
	g.Go(func() error {
		return a.eachEvent(ctx, r, 0, func(e model.Event) {
			if e.UserID != "" {
				active[e.UserID] = struct{}{}
			}
			rep.EventBreakdown[orDefault(e.EventType, "unknown")]++
		})
	})
	if err := g.Wait(); err != nil {
		return UserReport{}, err
	}

	for _, u := range users {
		rep.DailyRegistrations[u.CreatedAt.UTC().Format(dayLayout)]++
	}
	rep.TotalNewUsers = len(users)
	rep.TotalActiveUsers = len(active)
	return rep, nil
}

func (a *API) track(c httpx.Context) error {
	var in model.EventCreate
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return a.fail(c, err, "")
	}
	if err := a.store.CreateEvent(c.Request().Context(), in.Event(a.now())); err != nil {
		return a.fail(c, err, "")
	}
	a.invalidate(prefixAnalytics)
	return c.JSON(httpx.StatusOK, map[string]any{"success": true, "message": "Event tracked"})
}

func (a *API) dashboardHandler(c httpx.Context) error {
	days, err := queryInt(c, "days", 7, 1, maxDays)
	if err != nil {
		return err
	}
	d, err := a.dashboard(c.Request().Context(), days)
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, d)
}

func (a *API) incidentAnalytics(c httpx.Context) error {
	days, err := queryInt(c, "days", 30, 1, maxDays)
	if err != nil {
		return err
	}
	rep, err := a.incidentReport(c.Request().Context(), days)
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, rep)
}

func (a *API) userAnalytics(c httpx.Context) error {
	days, err := queryInt(c, "days", 30, 1, maxDays)
	if err != nil {
		return err
	}
	rep, err := a.userReport(c.Request().Context(), days)
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, rep)
}

type systemCounts struct {
	TotalIncidents      int64 `json:"total_incidents"`
	TotalUsers          int64 `json:"total_users"`
	TotalEvents         int64 `json:"total_events"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
}

func (a *API) systemAnalytics(c httpx.Context) error {
	var (
		stats  db.Stats
		counts systemCounts
		zero   time.Time
	)
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		stats, err = a.store.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		counts.TotalIncidents, err = a.store.CountIncidents(ctx, zero, zero)
		return err
	})
	g.Go(func() (err error) {
		counts.TotalUsers, err = a.store.CountUsers(ctx, zero, zero)
		return err
	})
	g.Go(func() (err error) {
		counts.TotalEvents, err = a.store.CountEvents(ctx, zero, zero)
		return err
	})
	g.Go(func() (err error) {
		counts.ActiveSubscriptions, err = a.store.CountActiveSubscriptions(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, map[string]any{
		"database":  stats,
		"counts":    counts,
		"timestamp": a.now().UTC(),
	})
}

// exportAnalytics returns the newest exportLimit incidents and events in the
// window. Summary totals count every row in the window.
func (a *API) exportAnalytics(c httpx.Context) error {
	days, err := queryInt(c, "days", 30, 1, maxDays)
	if err != nil {
		return err
	}
	r := a.window(days)
	r.Days = 0
	var (
		incidents     []model.Incident
		events        []model.Event
		nInc, nEvents int64
	)
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		return a.eachIncident(ctx, r, exportLimit, func(inc model.Incident) { incidents = append(incidents, inc) })
	})
	g.Go(func() error {
		return a.eachEvent(ctx, r, exportLimit, func(e model.Event) { events = append(events, e) })
	})
	g.Go(func() (err error) {
		nInc, err = a.store.CountIncidents(ctx, r.Start, r.End)
		return err
	})
	g.Go(func() (err error) {
		nEvents, err = a.store.CountEvents(ctx, r.Start, r.End)
		return err
	})
	if err := g.Wait(); err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, map[string]any{
		"export_date": a.now().UTC(),
		"date_range":  r,
		"incidents":   nonNil(incidents),
		"events":      nonNil(events),
		"truncated":   int64(len(incidents)) < nInc || int64(len(events)) < nEvents,
		"summary": map[string]int64{
			"total_incidents": nInc,
			"total_events":    nEvents,
		},
	})
}

func (a *API) realtime(c httpx.Context) error {
	now := a.now().UTC()
	hourAgo := now.Add(-time.Hour)
	var incidents, events, active int64
	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		incidents, err = a.store.CountIncidents(ctx, hourAgo, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		events, err = a.store.CountEvents(ctx, hourAgo, time.Time{})
		return err
	})
	g.Go(func() (err error) {
		active, err = a.store.DistinctEventUsers(ctx, now.Add(-5*time.Minute))
		return err
	})
	if err := g.Wait(); err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, map[string]any{
		"timestamp": now,
		"last_hour": map[string]int64{"incidents": incidents, "events": events},
		"current":   map[string]int64{"active_users": active},
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
