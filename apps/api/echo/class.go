package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core/class"
)

type classApi struct {
	base
	svc *class.Service
}

func registerClassAPI(g *echo.Group, authed echo.MiddlewareFunc, b base, svc *class.Service) {
	api := classApi{base: b, svc: svc}

	cg := g.Group("/classes", authed)
	cg.POST("", api.create)
	cg.GET("", api.query)

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)

	// roster
	dg.POST("/students", api.addStudent)
	dg.GET("/students", api.queryStudents)
	dg.DELETE("/students/:student_id", api.removeStudent)
}

// Handlers

func (api *classApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	api.record(ctx, "create", "class", c.ID)
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	classes, err := api.svc.List(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data class.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	api.record(ctx, "update", "class", c.ID)
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	api.record(ctx, "delete", "class", id)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Class deleted successfully"})
}

func (api *classApi) addStudent(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data class.NewEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.AddStudent(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	api.record(ctx, "enroll", "class", enr.ClassID)
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *classApi) queryStudents(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.ListStudents(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing class students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) removeStudent(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if err = api.svc.RemoveStudent(ctx.Request().Context(), usr, id, ctx.Param("student_id")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	api.record(ctx, "unenroll", "class", id)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Student removed from class"})
}
