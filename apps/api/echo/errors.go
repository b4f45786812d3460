package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
	"github.com/trezcool/darasa/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}

			httpErr *echo.HTTPError
			fldErrs validator.ValidationErrors
			vErr    *core.ValidationError
		)

		switch {
		case errors.As(err, &httpErr):
			if httpErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = httpErr.Message
				break
			}
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &fldErrs):
			msgs := make(map[string]string, len(fldErrs))
			for _, fErr := range fldErrs {
				msgs[fErr.Field()] = fErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = msgs
		case errors.As(err, &vErr):
			if vErr.Fields != nil {
				msgs := make(map[string]string, len(vErr.Fields))
				for _, fErr := range vErr.Fields {
					msgs[fErr.Field] = fErr.Error
				}
				message = msgs
			} else {
				message = vErr.Error()
			}
			code = http.StatusBadRequest
		case errors.Is(err, attachment.ErrInvalidFile):
			code = http.StatusBadRequest
			message = core.StatusMessage(err)
		case errors.Is(err, core.ErrUnauthorized):
			code = errUnauthorized.Code
			message = errUnauthorized.Message
		case errors.Is(err, core.ErrPermissionDenied):
			code = errHttpForbidden.Code
			message = errHttpForbidden.Message
		case errors.Is(err, core.ErrNotFound):
			code = errHttpNotFound.Code
			message = errHttpNotFound.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			var upErr *attachment.UploadError
			if errors.As(err, &upErr) {
				message = upErr.StatusMessage()
			}

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Name = claims.Name
				usr.Email = claims.Email
			}
			logger.Error(
				fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err),
				errors.Wrap(err, "handling request"),
				usr,
			)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
