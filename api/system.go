package api

import (
	"context"
	"runtime"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/model"
)

const pingTimeout = 2 * time.Second

func (a *API) hello(c httpx.Context) error {
	return ok(c, "Hello World")
}

type statusCheckCreate struct {
	ClientName string `json:"client_name"`
}

func (a *API) createStatusCheck(c httpx.Context) error {
	var in statusCheckCreate
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if in.ClientName == "" {
		return httpx.HTTPError(httpx.StatusBadRequest, "client_name is required")
	}
	sc := model.StatusCheck{ID: model.NewID(), ClientName: in.ClientName, Timestamp: a.now()}
	if err := a.store.CreateStatusCheck(c.Request().Context(), sc); err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, sc)
}

func (a *API) listStatusChecks(c httpx.Context) error {
	list, err := a.store.ListStatusChecks(c.Request().Context(), db.MaxLimit)
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, nonNil(list))
}

// Health is the body of the health endpoint.
type Health struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	System    SystemStats       `json:"system"`
	Version   string            `json:"version"`
}

// SystemStats are process-level runtime figures.
type SystemStats struct {
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	SysMB         float64 `json:"sys_mb"`
	NumGC         uint32  `json:"num_gc"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

func (a *API) systemStats() SystemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	const mb = 1 << 20
	return SystemStats{
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(m.HeapAlloc) / mb,
		SysMB:         float64(m.Sys) / mb,
		NumGC:         m.NumGC,
		UptimeSeconds: int64(a.now().Sub(a.started) / time.Second),
	}
}

func (a *API) health(c httpx.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()

	dbStatus := "healthy"
	if err := a.store.Ping(ctx); err != nil {
		dbStatus = "unhealthy"
		a.log.Errorj(log.JSON{"event": "health_db_failed", "error": err.Error()})
	}
	h := Health{
		Status:    dbStatus,
		Timestamp: a.now().UTC(),
		Services:  map[string]string{"database": dbStatus, "api": "healthy"},
		System:    a.systemStats(),
		Version:   Version,
	}
	code := httpx.StatusOK
	if dbStatus != "healthy" {
		code = httpx.StatusServiceUnavailable
	}
	return c.JSON(code, h)
}

func (a *API) cacheStats(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, a.tiers.Stats())
}

func (a *API) clearCache(c httpx.Context) error {
	a.tiers.ClearAll()
	p, _ := principal(c)
	a.log.Infoj(log.JSON{"event": "cache_cleared", "by": p.User.Username})
	return ok(c, "All caches cleared")
}
