package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/pensamiento/core/user"
)

// requireRoles lets through the tokens whose role is one of roles.
func requireRoles(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

// staffOnly guards the endpoints of professors and admins.
func staffOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Role.CanIssueAwards() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
