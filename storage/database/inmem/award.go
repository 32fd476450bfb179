package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
)

type awardRepository struct {
	db *DB
}

var _ award.Repository = (*awardRepository)(nil)

func NewAwardRepository(db *DB) award.Repository {
	return &awardRepository{db: db}
}

func (repo *awardRepository) CreateAward(_ context.Context, awd award.Award, _ ...core.DBExecutor) (award.Award, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// mirrors the partial unique index of the SQL schema
	for _, other := range repo.db.awards.rows {
		if other.IsPending() && awd.IsPending() && other.StudentID == awd.StudentID && other.ExerciseID == awd.ExerciseID {
			return award.Award{}, award.ErrPendingExists
		}
	}
	awd.ID = repo.db.awards.nextPK()
	repo.db.awards.rows[awd.ID] = awd
	return awd, nil
}

func (repo *awardRepository) ReissueAward(_ context.Context, awd award.Award, _ ...core.DBExecutor) (award.Award, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.awards.rows[awd.ID]
	if !ok || !orig.IsPending() {
		return award.Award{}, award.ErrNotFound
	}
	orig.Code = awd.Code
	orig.PointsAwarded = awd.PointsAwarded
	orig.ActivityID = awd.ActivityID
	orig.AwardedBy = awd.AwardedBy
	orig.IssuedAt = awd.IssuedAt
	repo.db.awards.rows[orig.ID] = orig
	return orig, nil
}

func (repo *awardRepository) CompleteAward(_ context.Context, id int, completedAt time.Time, _ ...core.DBExecutor) (award.Award, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	awd, ok := repo.db.awards.rows[id]
	if !ok || !awd.IsPending() {
		return award.Award{}, award.ErrNotFound
	}
	awd.Status = award.StatusCompleted
	awd.Code = ""
	awd.CompletedAt = &completedAt
	repo.db.awards.rows[id] = awd
	return awd, nil
}

func (repo *awardRepository) GetAward(_ context.Context, id int, _ ...core.DBExecutor) (award.Award, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if awd, ok := repo.db.awards.rows[id]; ok {
		return awd, nil
	}
	return award.Award{}, award.ErrNotFound
}

func (repo *awardRepository) QueryAwards(_ context.Context, filter award.QueryFilter, _ ...core.DBExecutor) ([]award.Award, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	awards := make([]award.Award, 0)
	for _, awd := range repo.db.awards.rows {
		if filter.StudentID != 0 && awd.StudentID != filter.StudentID {
			continue
		}
		if filter.ExerciseID != 0 && awd.ExerciseID != filter.ExerciseID {
			continue
		}
		if filter.ActivityID != 0 && (awd.ActivityID == nil || *awd.ActivityID != filter.ActivityID) {
			continue
		}
		if filter.Status != "" && awd.Status != filter.Status {
			continue
		}
		awards = append(awards, awd)
	}
	sort.Slice(awards, func(i, j int) bool { return awards[i].ID > awards[j].ID })
	return awards, nil
}

func (repo *awardRepository) CountAwards(_ context.Context, studentID, exerciseID int, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var count int
	for _, awd := range repo.db.awards.rows {
		if awd.StudentID == studentID && awd.ExerciseID == exerciseID {
			count++
		}
	}
	return count, nil
}

func (repo *awardRepository) SumCompletedPoints(_ context.Context, studentID int, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var total int
	for _, awd := range repo.db.awards.rows {
		if awd.StudentID == studentID && awd.Status == award.StatusCompleted {
			total += awd.PointsAwarded
		}
	}
	return total, nil
}
