package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core/grade"
)

type gradeApi struct {
	base
	svc *grade.Service
}

func registerGradeAPI(g *echo.Group, authed echo.MiddlewareFunc, b base, svc *grade.Service) {
	api := gradeApi{base: b, svc: svc}

	gg := g.Group("/grades", authed)
	gg.POST("", api.create)
	gg.GET("/my", api.queryMine)
	gg.GET("/submission/:id", api.retrieveBySubmission)
	gg.GET("/assignment/:id", api.queryAssignment)
	gg.PUT("/:id", api.update)
	gg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *gradeApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data grade.NewGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	gr, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	api.record(ctx, "create", "grade", gr.ID)
	return ctx.JSON(http.StatusCreated, gr)
}

func (api *gradeApi) queryMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	grades, err := api.svc.My(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing own grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) retrieveBySubmission(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	gr, err := api.svc.BySubmission(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission grade")
	}
	return ctx.JSON(http.StatusOK, gr)
}

func (api *gradeApi) queryAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	grades, err := api.svc.ByAssignment(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing assignment grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data grade.UpdateGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	gr, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	api.record(ctx, "update", "grade", gr.ID)
	return ctx.JSON(http.StatusOK, gr)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	api.record(ctx, "delete", "grade", id)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Grade deleted successfully"})
}
