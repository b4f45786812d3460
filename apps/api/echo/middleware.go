package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core/user"
)

// rolesMiddleware lets through tokens holding a role that starts with one of prefixes.
func rolesMiddleware(prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.hasRole(prefixes...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return rolesMiddleware(user.RoleAdmin)
}

// professorMiddleware also admits admins.
func professorMiddleware() echo.MiddlewareFunc {
	return rolesMiddleware(user.RoleProfessor, user.RoleAdmin)
}
