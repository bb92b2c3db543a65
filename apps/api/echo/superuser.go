package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core/analytics"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/school"
)

type superuserApi struct {
	base
	schools   *school.Service
	analytics *analytics.Service
}

func registerSuperuserAPI(g *echo.Group, authed echo.MiddlewareFunc, b base, schools *school.Service, an *analytics.Service) {
	api := superuserApi{base: b, schools: schools, analytics: an}

	sg := g.Group("/superuser", authed, roleMiddleware(auth.RoleSuperuser))
	sg.GET("/schools", api.querySchools)
	sg.GET("/schools/:id/analytics", api.schoolAnalytics)
	sg.GET("/analytics/platform", api.platformAnalytics)
}

// Handlers

func (api *superuserApi) querySchools(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter school.QueryFilter
	if err = bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}

	listing, err := api.schools.ListForSuperuser(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing schools")
	}
	return ctx.JSON(http.StatusOK, listing)
}

func (api *superuserApi) schoolAnalytics(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	res, err := api.analytics.SchoolAnalytics(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing school analytics")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *superuserApi) platformAnalytics(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	res, err := api.analytics.PlatformAnalytics(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing platform analytics")
	}
	return ctx.JSON(http.StatusOK, res)
}
