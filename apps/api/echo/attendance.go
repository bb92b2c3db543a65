package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core/attendance"
)

type attendanceApi struct {
	base
	svc *attendance.Service
}

func registerAttendanceAPI(g *echo.Group, authed echo.MiddlewareFunc, b base, svc *attendance.Service) {
	api := attendanceApi{base: b, svc: svc}

	ag := g.Group("/attendance", authed)
	ag.POST("", api.mark)
	ag.POST("/bulk", api.markBulk)
	ag.GET("/class/:id", api.queryClass)
	ag.GET("/class/:id/summary", api.summary)
	ag.GET("/student/:id", api.queryStudent)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
}

// Handlers

func (api *attendanceApi) mark(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data attendance.NewAttendance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Mark(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	api.record(ctx, "create", "attendance", a.ID)
	return ctx.JSON(http.StatusCreated, a)
}

func (api *attendanceApi) markBulk(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data attendance.BulkAttendance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkAttendance")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	res, err := api.svc.Bulk(ctx.Request().Context(), usr, api.validate, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance in bulk")
	}
	for _, a := range res.Created {
		api.record(ctx, "create", "attendance", a.ID)
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) queryClass(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter attendance.QueryFilter
	if err = bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}

	records, err := api.svc.ByClass(ctx.Request().Context(), usr, ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "listing class attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter attendance.QueryFilter
	if err = bindQuery(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), usr, ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing attendance")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *attendanceApi) queryStudent(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	records, err := api.svc.ByStudent(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing student attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data attendance.UpdateAttendance
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAttendance")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating attendance")
	}
	api.record(ctx, "update", "attendance", a.ID)
	return ctx.JSON(http.StatusOK, a)
}

func (api *attendanceApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	api.record(ctx, "delete", "attendance", id)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Attendance record deleted"})
}
