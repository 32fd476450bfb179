package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/pensamiento/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) CreateActivity(_ context.Context, act catalog.Activity) (catalog.Activity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	act.ID = repo.db.activities.nextPK()
	repo.db.activities.rows[act.ID] = act
	return act, nil
}

func (repo *catalogRepository) GetActivity(_ context.Context, id int) (catalog.Activity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if act, ok := repo.db.activities.rows[id]; ok {
		return act, nil
	}
	return catalog.Activity{}, catalog.ErrActivityNotFound
}

func (repo *catalogRepository) QueryActivities(_ context.Context, filter catalog.ActivityFilter) ([]catalog.Activity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	acts := make([]catalog.Activity, 0)
	for _, act := range repo.db.activities.rows {
		if filter.Group != "" && !strings.EqualFold(act.Group, filter.Group) {
			continue
		}
		if filter.Status != "" && act.Status != filter.Status {
			continue
		}
		acts = append(acts, act)
	}
	sort.Slice(acts, func(i, j int) bool { return acts[i].ID < acts[j].ID })
	return acts, nil
}

func (repo *catalogRepository) CreateExercise(_ context.Context, ex catalog.Exercise) (catalog.Exercise, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.activities.rows[ex.ActivityID]; !ok {
		return catalog.Exercise{}, catalog.ErrActivityNotFound
	}
	ex.ID = repo.db.exercises.nextPK()
	repo.db.exercises.rows[ex.ID] = ex
	return ex, nil
}

func (repo *catalogRepository) GetExercise(_ context.Context, id int) (catalog.Exercise, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ex, ok := repo.db.exercises.rows[id]; ok {
		return ex, nil
	}
	return catalog.Exercise{}, catalog.ErrExerciseNotFound
}

func (repo *catalogRepository) QueryExercises(_ context.Context, activityID int) ([]catalog.Exercise, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	exs := make([]catalog.Exercise, 0)
	for _, ex := range repo.db.exercises.rows {
		if ex.ActivityID == activityID {
			exs = append(exs, ex)
		}
	}
	sort.Slice(exs, func(i, j int) bool { return exs[i].ID < exs[j].ID })
	return exs, nil
}
