package api

import (
	"github.com/labstack/gommon/log"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/model"
)

const incidentNotFound = "Report not found"

func (a *API) createIncident(c httpx.Context) error {
	var in model.IncidentCreate
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return a.fail(c, err, "")
	}
	inc := in.Incident(a.now())
	if err := a.store.CreateIncident(c.Request().Context(), inc); err != nil {
		return a.fail(c, err, "")
	}
	a.invalidate(prefixIncidents, prefixAnalytics)
	a.log.Infoj(log.JSON{"event": "incident_created", "id": inc.ID, "type": inc.IncidentType, "priority": inc.Priority})
	return c.JSON(httpx.StatusCreated, inc)
}

func (a *API) listIncidentsHandler(c httpx.Context) error {
	skip, err := queryInt(c, "skip", 0, 0, 1<<30)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", db.DefaultLimit, 1, db.MaxLimit)
	if err != nil {
		return err
	}
	list, err := a.listIncidents(c.Request().Context(), db.IncidentFilter{
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, nonNil(list))
}

func (a *API) getIncidentHandler(c httpx.Context) error {
	inc, err := a.getIncident(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.fail(c, err, incidentNotFound)
	}
	return c.JSON(httpx.StatusOK, inc)
}

func (a *API) updateIncident(c httpx.Context) error {
	var upd model.IncidentUpdate
	if err := httpx.BindBody(c, &upd); err != nil {
		return err
	}
	if upd.Empty() {
		return httpx.HTTPError(httpx.StatusBadRequest, "No valid fields to update")
	}
	ctx := c.Request().Context()
	inc, err := a.store.GetIncident(ctx, c.Param("id"))
	if err != nil {
		return a.fail(c, err, incidentNotFound)
	}
	upd.Apply(&inc, a.now())
	if err := a.store.UpdateIncident(ctx, inc); err != nil {
		return a.fail(c, err, incidentNotFound)
	}
	a.invalidate(prefixIncidents, prefixAnalytics)
	a.log.Infoj(log.JSON{"event": "incident_updated", "id": inc.ID, "status": inc.Status})
	return c.JSON(httpx.StatusOK, inc)
}

func (a *API) deleteIncident(c httpx.Context) error {
	if err := a.store.DeleteIncident(c.Request().Context(), c.Param("id")); err != nil {
		return a.fail(c, err, incidentNotFound)
	}
	a.invalidate(prefixIncidents, prefixAnalytics)
	return ok(c, "Report deleted successfully")
}

func (a *API) userIncidents(c httpx.Context) error {
	list, err := a.listIncidents(c.Request().Context(), db.IncidentFilter{
		ReportedBy: c.Param("name"),
		Limit:      db.MaxLimit,
	})
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, nonNil(list))
}
