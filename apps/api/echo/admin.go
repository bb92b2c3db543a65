package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core/activity"
	"github.com/learnmate/learnmate/core/analytics"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/user"
)

type adminApi struct {
	base
	users     *user.Service
	analytics *analytics.Service
}

func registerAdminAPI(g *echo.Group, authed echo.MiddlewareFunc, b base, users *user.Service, an *analytics.Service) {
	api := adminApi{base: b, users: users, analytics: an}

	ag := g.Group("/admin", authed, roleMiddleware(auth.RoleAdmin))
	ag.GET("/metrics", api.metrics)
	ag.GET("/users", api.queryUsers)
	ag.POST("/create-user", api.createUser)
	ag.GET("/activity", api.queryActivity)
}

// Handlers

func (api *adminApi) metrics(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	m, err := api.analytics.AdminMetrics(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing metrics")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *adminApi) queryUsers(ctx echo.Context) error {
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

	profiles, err := api.users.List(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing users")
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (api *adminApi) createUser(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data user.NewUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	created, err := api.users.CreateUser(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	api.record(ctx, "create", "profile", created.ID)
	return ctx.JSON(http.StatusCreated, created)
}

func (api *adminApi) queryActivity(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter activity.QueryFilter
	if err = bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	logs, err := api.activity.List(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing activity")
	}
	return ctx.JSON(http.StatusOK, logs)
}
