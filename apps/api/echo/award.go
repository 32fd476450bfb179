package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/user"
	"github.com/trezcool/pensamiento/services/metrics"
)

type awardApi struct {
	svc      *award.Service
	validate *validator.Validate
}

func registerAwardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *award.Service, validate *validator.Validate) {
	api := awardApi{svc: svc, validate: validate}

	ag := g.Group("/awards", jwt)
	ag.POST("", api.issue, staffOnly())
	ag.GET("", api.query, staffOnly())
	ag.GET("/me", api.queryMine, requireRoles(user.RoleStudent))
	ag.POST("/redeem", api.redeem, requireRoles(user.RoleStudent))
	ag.GET("/:id", api.retrieve, staffOnly())
	ag.POST("/:id/redeem", api.redeemByID, requireRoles(user.RoleStudent))
}

// Handlers

// issue answers 201 with a new award, or 200 when a pending award was overwritten.
func (api *awardApi) issue(ctx echo.Context) error {
	var data award.IssueRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IssueRequest")
	}
	issuerID, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	awd, created, err := api.svc.Issue(ctx.Request().Context(), issuerID, data)
	if err != nil {
		return errors.Wrap(err, "issuing award")
	}
	metrics.ObserveIssued(created)

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, awd)
}

func (api *awardApi) query(ctx echo.Context) error {
	var filter award.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	awards, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying awards")
	}
	if awards == nil {
		awards = []award.Award{}
	}
	return ctx.JSON(http.StatusOK, awards)
}

func (api *awardApi) queryMine(ctx echo.Context) error {
	studentID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	awards, err := api.svc.QueryByStudent(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "querying student awards")
	}
	if awards == nil {
		awards = []award.Award{}
	}
	return ctx.JSON(http.StatusOK, awards)
}

func (api *awardApi) retrieve(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	awd, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == award.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting award")
	}
	return ctx.JSON(http.StatusOK, awd)
}

func (api *awardApi) redeem(ctx echo.Context) error {
	var data award.RedeemRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RedeemRequest")
	}
	studentID, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.Redeem(ctx.Request().Context(), studentID, data)
	if err != nil {
		metrics.ObserveRedeemFailure(err)
		return errors.Wrap(err, "redeeming award")
	}
	metrics.ObserveRedeemed(res)
	return ctx.JSON(http.StatusOK, res)
}

func (api *awardApi) redeemByID(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data award.RedeemByIDRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RedeemByIDRequest")
	}
	studentID, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.RedeemByID(ctx.Request().Context(), studentID, id, data)
	if err != nil {
		metrics.ObserveRedeemFailure(err)
		return errors.Wrap(err, "redeeming award")
	}
	metrics.ObserveRedeemed(res)
	return ctx.JSON(http.StatusOK, res)
}

func contextUserID(ctx echo.Context) (int, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}
