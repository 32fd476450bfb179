package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")

	// sentinelStatuses maps the core sentinel errors to their HTTP status.
	sentinelStatuses = map[error]int{
		award.ErrNotFound:              http.StatusNotFound,
		award.ErrNotOwner:              http.StatusForbidden,
		award.ErrPendingExists:         http.StatusConflict,
		award.ErrCodeExhausted:         http.StatusServiceUnavailable,
		catalog.ErrActivityNotFound:    http.StatusNotFound,
		catalog.ErrExerciseNotFound:    http.StatusNotFound,
		performance.ErrStudentNotFound: http.StatusNotFound,
		user.ErrNotFound:               http.StatusNotFound,
		user.ErrAuthenticationFailed:   http.StatusBadRequest,
		user.ErrAccountDeactivated:     http.StatusForbidden,
	}
)

// sentinelStatus looks cause up in sentinelStatuses without hashing it: some errors (validator.ValidationErrors) are slices.
func sentinelStatus(cause error) (int, bool) {
	for sentinel, status := range sentinelStatuses {
		if cause == sentinel {
			return status, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := sentinelStatus(cause); ok {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default:
				if cause == award.ErrCodeMismatch {
					code = http.StatusBadRequest
					message = map[string]string{"code": cause.Error()}
					break
				}

				// any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID, _ = claims.UserID()
					usr.Name = claims.Name
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr, map[string]interface{}{
					"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
					"path":       ctx.Path(),
				})

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
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
