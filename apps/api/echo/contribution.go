package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/contribution"
)

var errInvalidWeek = core.NewValidationError(nil, core.FieldError{Field: "week", Error: "week must be a number between 1 and 53"})

type contributionApi struct {
	svc *contribution.Service
}

func registerContributionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := contributionApi{svc: deps.ContributionSvc}

	cg := g.Group("/contributions", jwt)
	cg.GET("", api.list)
	cg.POST("", api.create)
	cg.DELETE("/:id", api.destroy)
}

// list filters by the `week` query param; all weeks are listed without it.
func (api *contributionApi) list(ctx echo.Context) error {
	var week int
	if w := ctx.QueryParam("week"); w != "" {
		var err error
		if week, err = strconv.Atoi(w); err != nil || week < 1 || week > 53 {
			return errInvalidWeek
		}
	}

	items, err := api.svc.List(ctx.Request().Context(), week)
	if err != nil {
		return errors.Wrap(err, "listing contributions")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *contributionApi) create(ctx echo.Context) error {
	var data contribution.NewContribution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContribution")
	}
	file, done, err := formFile(ctx, "file")
	if err != nil {
		return err
	}
	defer done()

	c, err := api.svc.Create(ctx.Request().Context(), data, file)
	if err != nil {
		return errors.Wrap(err, "creating contribution")
	}
	return ctx.JSON(http.StatusCreated, c)
}

// destroy is open to any signed-in user.
func (api *contributionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting contribution")
	}
	return ctx.NoContent(http.StatusNoContent)
}
