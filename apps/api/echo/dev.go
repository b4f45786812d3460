package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
)

// mailPreviewer is implemented by the console email sandbox.
type mailPreviewer interface {
	Preview(id string) (string, bool)
}

// registerDevAPI exposes the sent messages of the email sandbox. Real email services expose nothing.
func registerDevAPI(e *echo.Echo, mailSvc core.EmailService) {
	previewer, ok := mailSvc.(mailPreviewer)
	if !ok {
		return
	}
	e.GET("/dev/mail/:id", func(ctx echo.Context) error {
		body, found := previewer.Preview(ctx.Param("id"))
		if !found {
			return errHttpNotFound
		}
		return ctx.HTML(http.StatusOK, body)
	})
}
