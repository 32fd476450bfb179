package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/user"
)

type performanceApi struct {
	svc      *performance.Service
	awardSvc *award.Service
}

func registerPerformanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *performance.Service, awardSvc *award.Service) {
	api := performanceApi{svc: svc, awardSvc: awardSvc}

	sg := g.Group("/students/:id/performance", jwt)
	sg.GET("", api.retrieve)
	sg.POST("/recompute", api.recompute, requireRoles(user.RoleAdmin))

	lg := g.Group("/leaderboard", jwt)
	lg.GET("", api.leaderboards, staffOnly())
	lg.GET("/groups/:group", api.leaderboard)
}

// Handlers

// retrieve is available to the student themselves and to the staff.
func (api *performanceApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if ctxID, _ := claims.UserID(); ctxID != id && !claims.Role.CanIssueAwards() {
		return errHttpForbidden
	}

	student, err := api.svc.GetStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *performanceApi) recompute(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	perf, err := api.awardSvc.Recompute(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "recomputing performance")
	}
	return ctx.JSON(http.StatusOK, perf)
}

func (api *performanceApi) leaderboard(ctx echo.Context) error {
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return err
	}
	board, err := api.svc.Leaderboard(ctx.Request().Context(), ctx.Param("group"), limit)
	if err != nil {
		return errors.Wrap(err, "getting leaderboard")
	}
	if board.Entries == nil {
		board.Entries = []performance.LeaderboardEntry{}
	}
	return ctx.JSON(http.StatusOK, board)
}

func (api *performanceApi) leaderboards(ctx echo.Context) error {
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return err
	}
	boards, err := api.svc.Leaderboards(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "getting leaderboards")
	}
	return ctx.JSON(http.StatusOK, boards)
}
