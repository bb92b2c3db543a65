package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
)

const (
	contextUserKey  = "user"
	contextTokenKey = "token"

	userIDHeader = "X-User-ID"
	bearerScheme = "bearer"
)

// credential extracts the bearer token and the raw user id header. A malformed Authorization header is ignored.
func credential(ctx echo.Context) auth.Credential {
	var cred auth.Credential
	if h := ctx.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], bearerScheme) {
			cred.Token = strings.TrimSpace(parts[1])
		}
	}
	cred.UserID = strings.TrimSpace(ctx.Request().Header.Get(userIDHeader))
	return cred
}

// authMiddleware resolves the caller on every request and stores it in the echo.Context.
func authMiddleware(resolver *auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cred := credential(ctx)
			usr, err := resolver.Resolve(ctx.Request().Context(), cred)
			if err != nil {
				return err
			}
			ctx.Set(contextUserKey, usr)
			ctx.Set(contextTokenKey, cred.Token)
			return next(ctx)
		}
	}
}

func roleMiddleware(roles ...auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if !usr.Is(roles...) {
				return core.ErrForbidden
			}
			return next(ctx)
		}
	}
}

func getContextUser(ctx echo.Context) (auth.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(auth.User); ok {
		return usr, nil
	}
	return auth.User{}, core.ErrNotAuthenticated
}
