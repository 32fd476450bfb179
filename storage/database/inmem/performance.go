package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/user"
)

type performanceRepository struct {
	db *DB
}

var _ performance.Repository = (*performanceRepository)(nil)

func NewPerformanceRepository(db *DB) performance.Repository {
	return &performanceRepository{db: db}
}

// student must be called with db.mu held.
func (repo *performanceRepository) student(usr user.User) performance.Student {
	perf, ok := repo.db.performances[usr.ID]
	if !ok {
		perf = performance.Initial(usr.ID)
	}
	return performance.Student{
		ID:          usr.ID,
		Name:        usr.Name,
		Email:       usr.Email,
		Group:       usr.Group,
		TotalPoints: perf.TotalPoints,
		Category:    perf.Category,
	}
}

func (repo *performanceRepository) GetStudent(_ context.Context, id int, _ ...core.DBExecutor) (performance.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	usr, ok := repo.db.users.rows[id]
	if !ok || !usr.IsStudent() {
		return performance.Student{}, performance.ErrStudentNotFound
	}
	return repo.student(usr), nil
}

func (repo *performanceRepository) GetPerformance(_ context.Context, studentID int, _ ...core.DBExecutor) (performance.Performance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if perf, ok := repo.db.performances[studentID]; ok {
		return perf, nil
	}
	return performance.Initial(studentID), nil
}

func (repo *performanceRepository) AddPoints(_ context.Context, studentID, points int, _ ...core.DBExecutor) (performance.Performance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	perf, ok := repo.db.performances[studentID]
	if !ok {
		perf = performance.Initial(studentID)
	}
	perf.TotalPoints += points
	perf.UpdatedAt = performance.NowFunc().UTC()
	repo.db.performances[studentID] = perf
	return perf, nil
}

func (repo *performanceRepository) SetPerformance(_ context.Context, perf performance.Performance, _ ...core.DBExecutor) (performance.Performance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if perf.UpdatedAt.IsZero() {
		perf.UpdatedAt = performance.NowFunc().UTC()
	}
	repo.db.performances[perf.StudentID] = perf
	return perf, nil
}

func (repo *performanceRepository) QueryStudents(_ context.Context, group string, limit int) ([]performance.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]performance.Student, 0)
	for _, usr := range repo.db.users.rows {
		if !usr.IsStudent() || !usr.IsActive {
			continue
		}
		if group != "" && !strings.EqualFold(usr.Group, group) {
			continue
		}
		students = append(students, repo.student(usr))
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].TotalPoints != students[j].TotalPoints {
			return students[i].TotalPoints > students[j].TotalPoints
		}
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
	if limit > 0 && len(students) > limit {
		students = students[:limit]
	}
	return students, nil
}

func (repo *performanceRepository) QueryGroups(_ context.Context) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	seen := make(map[string]struct{})
	groups := make([]string, 0)
	for _, usr := range repo.db.users.rows {
		if !usr.IsStudent() || !usr.IsActive || usr.Group == "" {
			continue
		}
		if _, ok := seen[usr.Group]; !ok {
			seen[usr.Group] = struct{}{}
			groups = append(groups, usr.Group)
		}
	}
	sort.Strings(groups)
	return groups, nil
}
