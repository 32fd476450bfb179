package performance

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/pensamiento/core"
)

var (
	ErrStudentNotFound = errors.New("student not found")

	NowFunc = time.Now // mockable
)

const DefaultLeaderboardSize = 5

type (
	Repository interface {
		// GetStudent returns ErrStudentNotFound unless id belongs to a user with the student role.
		GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (Student, error)
		GetPerformance(ctx context.Context, studentID int, exec ...core.DBExecutor) (Performance, error)
		// AddPoints atomically increments the student's total, creating the row when missing.
		AddPoints(ctx context.Context, studentID, points int, exec ...core.DBExecutor) (Performance, error)
		// SetPerformance overwrites the student's total and category.
		SetPerformance(ctx context.Context, perf Performance, exec ...core.DBExecutor) (Performance, error)
		// QueryStudents lists the students of group (all groups when empty) by points desc then name.
		QueryStudents(ctx context.Context, group string, limit int) ([]Student, error)
		QueryGroups(ctx context.Context) ([]string, error)
	}

	Service struct {
		repo Repository
		size int
	}
)

func NewService(repo Repository, leaderboardSize int) *Service {
	if leaderboardSize <= 0 {
		leaderboardSize = DefaultLeaderboardSize
	}
	return &Service{repo: repo, size: leaderboardSize}
}

func (svc *Service) GetStudent(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// Leaderboard returns the top students of group. limit <= 0 uses the configured size.
func (svc *Service) Leaderboard(ctx context.Context, group string, limit int) (Leaderboard, error) {
	group = core.CleanString(group)
	if limit <= 0 {
		limit = svc.size
	}
	students, err := svc.repo.QueryStudents(ctx, group, limit)
	if err != nil {
		return Leaderboard{}, err
	}
	return Leaderboard{Group: group, Entries: rank(students)}, nil
}

// Leaderboards returns the leaderboard of every group having students.
func (svc *Service) Leaderboards(ctx context.Context, limit int) (map[string]Leaderboard, error) {
	groups, err := svc.repo.QueryGroups(ctx)
	if err != nil {
		return nil, err
	}
	boards := make(map[string]Leaderboard, len(groups))
	for _, group := range groups {
		board, err := svc.Leaderboard(ctx, group, limit)
		if err != nil {
			return nil, err
		}
		boards[group] = board
	}
	return boards, nil
}

// rank assigns 1-based ranks; students with equal totals share a rank.
func rank(students []Student) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(students))
	for i, st := range students {
		r := i + 1
		if i > 0 && st.TotalPoints == students[i-1].TotalPoints {
			r = entries[i-1].Rank
		}
		entries = append(entries, LeaderboardEntry{
			Rank:        r,
			StudentID:   st.ID,
			Name:        st.Name,
			TotalPoints: st.TotalPoints,
			Category:    st.Category,
		})
	}
	return entries
}
