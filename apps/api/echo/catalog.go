package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/scoreboard"
)

type catalogApi struct {
	svc        *catalog.Service
	scoreboard scoreboard.Publisher
	validate   *validator.Validate
}

func registerCatalogAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *catalog.Service,
	board scoreboard.Publisher,
	validate *validator.Validate,
) {
	api := catalogApi{svc: svc, scoreboard: board, validate: validate}

	ag := g.Group("/activities", jwt)
	ag.POST("", api.createActivity, staffOnly())
	ag.GET("", api.queryActivities)
	ag.GET("/:id", api.retrieveActivity)
	ag.POST("/:id/exercises", api.createExercise, staffOnly())
	ag.GET("/:id/exercises", api.queryExercises)
	ag.GET("/:id/scoreboard", api.scoreboardEvents)

	eg := g.Group("/exercises", jwt)
	eg.GET("/:id", api.retrieveExercise)
}

// Handlers

func (api *catalogApi) createActivity(ctx echo.Context) error {
	var data catalog.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	professorID, err := claims.UserID()
	if err != nil {
		return err
	}

	act, err := api.svc.CreateActivity(ctx.Request().Context(), data, core.IntPtr(professorID))
	if err != nil {
		return errors.Wrap(err, "creating activity")
	}
	return ctx.JSON(http.StatusCreated, act)
}

func (api *catalogApi) queryActivities(ctx echo.Context) error {
	var filter catalog.ActivityFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ActivityFilter")
	}
	acts, err := api.svc.QueryActivities(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	if acts == nil {
		acts = []catalog.Activity{}
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (api *catalogApi) retrieveActivity(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	act, err := api.svc.GetActivity(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting activity")
	}
	return ctx.JSON(http.StatusOK, act)
}

func (api *catalogApi) createExercise(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var data catalog.NewExercise
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExercise")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ex, err := api.svc.CreateExercise(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "creating exercise")
	}
	return ctx.JSON(http.StatusCreated, ex)
}

func (api *catalogApi) queryExercises(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	if _, err = api.svc.GetActivity(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting activity")
	}
	exs, err := api.svc.QueryExercises(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying exercises")
	}
	if exs == nil {
		exs = []catalog.Exercise{}
	}
	return ctx.JSON(http.StatusOK, exs)
}

func (api *catalogApi) retrieveExercise(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	ex, err := api.svc.GetExercise(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting exercise")
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *catalogApi) scoreboardEvents(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	limit, err := queryInt(ctx, "limit")
	if err != nil {
		return err
	}
	if _, err = api.svc.GetActivity(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "getting activity")
	}
	if limit <= 0 {
		limit = scoreboard.DefaultRecentSize
	}
	events, err := api.scoreboard.Recent(ctx.Request().Context(), id, limit)
	if err != nil {
		return errors.Wrap(err, "reading scoreboard")
	}
	if events == nil {
		events = []scoreboard.Event{}
	}
	return ctx.JSON(http.StatusOK, events)
}
