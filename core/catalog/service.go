package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/pensamiento/core"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrExerciseNotFound = errors.New("exercise not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateActivity(ctx context.Context, act Activity) (Activity, error)
		GetActivity(ctx context.Context, id int) (Activity, error)
		QueryActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error)
		CreateExercise(ctx context.Context, ex Exercise) (Exercise, error)
		GetExercise(ctx context.Context, id int) (Exercise, error)
		QueryExercises(ctx context.Context, activityID int) ([]Exercise, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateActivity persists a validated NewActivity. professorID is nil for activities created by tooling.
func (svc *Service) CreateActivity(ctx context.Context, na NewActivity, professorID *int) (Activity, error) {
	return svc.repo.CreateActivity(ctx, Activity{
		Group:       na.Group,
		ProfessorID: professorID,
		Title:       na.Title,
		StartTime:   na.StartTime,
		EndTime:     na.EndTime,
		Status:      na.Status,
		CreatedAt:   NowFunc().UTC(),
	})
}

func (svc *Service) GetActivity(ctx context.Context, id int) (Activity, error) {
	return svc.repo.GetActivity(ctx, id)
}

func (svc *Service) QueryActivities(ctx context.Context, filter ActivityFilter) ([]Activity, error) {
	filter.Group = core.CleanString(filter.Group)
	return svc.repo.QueryActivities(ctx, filter)
}

// CreateExercise adds a validated NewExercise to an existing activity.
func (svc *Service) CreateExercise(ctx context.Context, activityID int, ne NewExercise) (Exercise, error) {
	if _, err := svc.repo.GetActivity(ctx, activityID); err != nil {
		return Exercise{}, err
	}
	return svc.repo.CreateExercise(ctx, Exercise{
		ActivityID: activityID,
		Title:      ne.Title,
		Statement:  ne.Statement,
		Difficulty: ne.Difficulty,
		MaxPoints:  ne.MaxPoints,
		CreatedAt:  NowFunc().UTC(),
	})
}

func (svc *Service) GetExercise(ctx context.Context, id int) (Exercise, error) {
	return svc.repo.GetExercise(ctx, id)
}

func (svc *Service) QueryExercises(ctx context.Context, activityID int) ([]Exercise, error) {
	return svc.repo.QueryExercises(ctx, activityID)
}
