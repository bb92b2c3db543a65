package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnmate/learnmate/core/submission"
)

type submissionApi struct {
	base
	svc *submission.Service
}

func registerSubmissionAPI(g *echo.Group, authed echo.MiddlewareFunc, b base, svc *submission.Service) {
	api := submissionApi{base: b, svc: svc}

	sg := g.Group("/submissions", authed)
	sg.POST("", api.create)
	sg.GET("/my", api.queryMine)
	sg.GET("/assignment/:id", api.queryAssignment)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update)
	sg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *submissionApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data submission.NewSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	api.record(ctx, "create", "submission", s.ID)
	return ctx.JSON(http.StatusCreated, s)
}

func (api *submissionApi) queryMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.My(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing own submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) queryAssignment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.ByAssignment(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data submission.UpdateSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubmission")
	}

	s, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating submission")
	}
	api.record(ctx, "update", "submission", s.ID)
	return ctx.JSON(http.StatusOK, s)
}

func (api *submissionApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting submission")
	}
	api.record(ctx, "delete", "submission", id)
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Submission deleted successfully"})
}
