package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core/user"
)

type profileApi struct {
	base
	svc *user.Service
}

func registerProfileAPI(g *echo.Group, authed echo.MiddlewareFunc, b base, svc *user.Service) {
	api := profileApi{base: b, svc: svc}

	pg := g.Group("/profiles", authed)
	pg.GET("/me", api.retrieveMe)
	pg.PUT("/me", api.updateMe)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
}

// Handlers

func (api *profileApi) retrieveMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Me(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting own profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateMe
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMe")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.UpdateMe(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating own profile")
	}
	api.record(ctx, "update", "profile", p.ID)
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter user.QueryFilter
	if err = bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ordering Ordering
	ordering.Bind(ctx)

	profiles, err := api.svc.List(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing profiles")
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *profileApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *profileApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.AdminUpdate(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	api.record(ctx, "update", "profile", p.ID)
	return ctx.JSON(http.StatusOK, p)
}
