package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/user"
)

type announcementApi struct {
	svc      *announcement.Service
	usrSvc   *user.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := announcementApi{
		svc:      deps.AnnouncementSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/announcements", jwt)
	ag.GET("", api.list)
	ag.GET("/:id", api.retrieve)
	ag.POST("", api.create, professorMiddleware())
	ag.PUT("/:id", api.update, professorMiddleware())
	ag.DELETE("/:id", api.destroy, professorMiddleware())

	g.POST("/announcement-notify", api.notify, jwt, professorMiddleware())
}

func (api *announcementApi) list(ctx echo.Context) error {
	items, err := api.svc.List(ctx.Request().Context(), ctx.QueryParam("course_id"))
	if err != nil {
		return errors.Wrap(err, "listing announcements")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *announcementApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *announcementApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	file, done, err := formFile(ctx, "file")
	if err != nil {
		return err
	}
	defer done()

	a, err := api.svc.Create(ctx.Request().Context(), actor, data, file)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *announcementApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data announcement.UpdateAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	file, done, err := formFile(ctx, "file")
	if err != nil {
		return err
	}
	defer done()

	a, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data, file)
	if err != nil {
		return errors.Wrap(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *announcementApi) notify(ctx echo.Context) error {
	var data announcement.NotifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotifyRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	res, err := api.svc.Notify(ctx.Request().Context(), data.AnnouncementID, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "notifying announcement")
	}
	return ctx.JSON(http.StatusOK, res)
}
