package api

import (
	"context"

	"github.com/labstack/gommon/log"

	"github.com/adeilh/emergency-backend/cache"
	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/model"
)

const typhoonNotFound = "Typhoon not found"

// activeTyphoonLimit caps the active list served from the short tier.
const activeTyphoonLimit = 100

func (a *API) createTyphoon(c httpx.Context) error {
	p, _ := principal(c)
	var in model.TyphoonCreate
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return a.fail(c, err, "")
	}
	t := in.Typhoon(p.User.Username, a.now())
	if err := a.store.CreateTyphoon(c.Request().Context(), t); err != nil {
		return a.fail(c, err, "")
	}
	a.invalidate(prefixTyphoons)
	a.log.Infoj(log.JSON{"event": "typhoon_created", "id": t.ID, "name": t.Name, "by": p.User.Username})
	return c.JSON(httpx.StatusCreated, t)
}

func (a *API) listTyphoonsHandler(c httpx.Context) error {
	skip, err := queryInt(c, "skip", 0, 0, 1<<30)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", db.DefaultLimit, 1, db.MaxLimit)
	if err != nil {
		return err
	}
	list, err := a.listTyphoons(c.Request().Context(), db.TyphoonFilter{
		Status: c.QueryParam("status"),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, nonNil(list))
}

func (a *API) activeTyphoons(c httpx.Context) error {
	ctx := c.Request().Context()
	list, err := cache.Load(ctx, a.tiers.Short, prefixTyphoons+":active", func(ctx context.Context) ([]model.Typhoon, error) {
		return a.store.ListTyphoons(ctx, db.TyphoonFilter{Status: model.TyphoonActive, Limit: activeTyphoonLimit})
	})
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, nonNil(list))
}

func (a *API) getTyphoonHandler(c httpx.Context) error {
	t, err := a.getTyphoon(c.Request().Context(), c.Param("id"))
	if err != nil {
		return a.fail(c, err, typhoonNotFound)
	}
	return c.JSON(httpx.StatusOK, t)
}

func (a *API) updateTyphoon(c httpx.Context) error {
	p, _ := principal(c)
	var upd model.TyphoonUpdate
	if err := httpx.BindBody(c, &upd); err != nil {
		return err
	}
	if upd.Empty() {
		return httpx.HTTPError(httpx.StatusBadRequest, "No valid fields to update")
	}
	ctx := c.Request().Context()
	t, err := a.store.GetTyphoon(ctx, c.Param("id"))
	if err != nil {
		return a.fail(c, err, typhoonNotFound)
	}
	upd.Apply(&t, p.User.Username, a.now())
	if err := a.store.UpdateTyphoon(ctx, t); err != nil {
		return a.fail(c, err, typhoonNotFound)
	}
	a.invalidate(prefixTyphoons)
	return c.JSON(httpx.StatusOK, t)
}

func (a *API) archiveTyphoon(c httpx.Context) error {
	p, _ := principal(c)
	status := model.TyphoonInactive
	ctx := c.Request().Context()
	t, err := a.store.GetTyphoon(ctx, c.Param("id"))
	if err != nil {
		return a.fail(c, err, typhoonNotFound)
	}
	model.TyphoonUpdate{Status: &status}.Apply(&t, p.User.Username, a.now())
	if err := a.store.UpdateTyphoon(ctx, t); err != nil {
		return a.fail(c, err, typhoonNotFound)
	}
	a.invalidate(prefixTyphoons)
	a.log.Infoj(log.JSON{"event": "typhoon_archived", "id": t.ID, "by": p.User.Username})
	return c.JSON(httpx.StatusOK, t)
}

func (a *API) addTrackingPoint(c httpx.Context) error {
	p, _ := principal(c)
	var point model.TrackingPoint
	if err := httpx.BindBody(c, &point); err != nil {
		return err
	}
	if err := point.Validate(); err != nil {
		return a.fail(c, err, "")
	}
	t, err := a.store.AppendTrackingPoint(c.Request().Context(), c.Param("id"), point, p.User.Username, a.now())
	if err != nil {
		return a.fail(c, err, typhoonNotFound)
	}
	a.invalidate(prefixTyphoons)
	return c.JSON(httpx.StatusOK, t)
}

func (a *API) deleteTyphoon(c httpx.Context) error {
	if err := a.store.DeleteTyphoon(c.Request().Context(), c.Param("id")); err != nil {
		return a.fail(c, err, typhoonNotFound)
	}
	a.invalidate(prefixTyphoons)
	return ok(c, "Typhoon deleted successfully")
}
