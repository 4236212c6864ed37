package api

import (
	"errors"

	"github.com/labstack/gommon/log"

	"github.com/adeilh/emergency-backend/auth"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/model"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signup struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// register always creates plain users. Admins come from the create-admin
// command or the configured seed users.
func (a *API) register(c httpx.Context) error {
	var in signup
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	u, err := a.auth.Register(c.Request().Context(), auth.Registration{
		Username: in.Username,
		Password: in.Password,
		Email:    in.Email,
		Role:     model.RoleUser,
	})
	switch {
	case errors.Is(err, auth.ErrUserExists):
		return httpx.HTTPError(httpx.StatusConflict, "Username already registered")
	case errors.Is(err, auth.ErrUserInvalidInput):
		return httpx.HTTPError(httpx.StatusBadRequest, detail(err, auth.ErrUserInvalidInput))
	case err != nil:
		return a.fail(c, err, "")
	}
	a.log.Infoj(log.JSON{"event": "user_registered", "username": u.Username, "role": u.Role})
	return c.JSON(httpx.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    u.Public(),
	})
}

func (a *API) login(c httpx.Context) error {
	var in credentials
	if err := httpx.BindBody(c, &in); err != nil {
		return err
	}
	session, err := a.auth.Login(c.Request().Context(), in.Username, in.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return httpx.HTTPError(httpx.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return a.fail(c, err, "")
	}
	return c.JSON(httpx.StatusOK, session)
}

func (a *API) me(c httpx.Context) error {
	p, ok := principal(c)
	if !ok {
		return httpx.HTTPError(httpx.StatusUnauthorized, "Could not validate credentials")
	}
	return c.JSON(httpx.StatusOK, p.User.Public())
}

func (a *API) logout(c httpx.Context) error {
	p, found := principal(c)
	if !found {
		return httpx.HTTPError(httpx.StatusUnauthorized, "Could not validate credentials")
	}
	if err := a.auth.Logout(c.Request().Context(), p); err != nil {
		return a.fail(c, err, "")
	}
	return ok(c, "Successfully logged out")
}
