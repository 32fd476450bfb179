package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/performance"
)

const (
	performanceColumns = `student_id, total_points, category, updated_at`
	studentSelect      = `
		SELECT u.id, u.name, u.email, u."group",
			COALESCE(p.total_points, 0) AS total_points,
			COALESCE(p.category, 'principiante') AS category
		FROM users u
		LEFT JOIN performances p ON p.student_id = u.id`
)

type performanceRow struct {
	StudentID   int       `db:"student_id"`
	TotalPoints int       `db:"total_points"`
	Category    string    `db:"category"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func unboilPerformance(row performanceRow) performance.Performance {
	return performance.Performance{
		StudentID:   row.StudentID,
		TotalPoints: row.TotalPoints,
		Category:    performance.Category(row.Category),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type studentRow struct {
	ID          int    `db:"id"`
	Name        string `db:"name"`
	Email       string `db:"email"`
	Group       string `db:"group"`
	TotalPoints int    `db:"total_points"`
	Category    string `db:"category"`
}

func unboilStudent(row studentRow) performance.Student {
	return performance.Student{
		ID:          row.ID,
		Name:        row.Name,
		Email:       row.Email,
		Group:       row.Group,
		TotalPoints: row.TotalPoints,
		Category:    performance.Category(row.Category),
	}
}

type performanceRepository struct {
	db *sqlx.DB
}

var _ performance.Repository = (*performanceRepository)(nil)

func NewPerformanceRepository(db *sqlx.DB) performance.Repository {
	return &performanceRepository{db: db}
}

func (repo *performanceRepository) GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (performance.Student, error) {
	ex := getExec(repo.db, exec)
	var row studentRow
	q := ex.Rebind(studentSelect + ` WHERE u.id = ? AND u.role = 'student'`)
	if err := sqlx.GetContext(ctx, ex, &row, q, id); err != nil {
		return performance.Student{}, trapNoRowsErr(err, performance.ErrStudentNotFound)
	}
	return unboilStudent(row), nil
}

func (repo *performanceRepository) GetPerformance(ctx context.Context, studentID int, exec ...core.DBExecutor) (performance.Performance, error) {
	ex := getExec(repo.db, exec)
	var row performanceRow
	q := ex.Rebind(`SELECT ` + performanceColumns + ` FROM performances WHERE student_id = ?`)
	if err := sqlx.GetContext(ctx, ex, &row, q, studentID); err != nil {
		if err = trapNoRowsErr(err, performance.ErrStudentNotFound); err == performance.ErrStudentNotFound {
			return performance.Initial(studentID), nil
		}
		return performance.Performance{}, errors.Wrap(err, "getting performance")
	}
	return unboilPerformance(row), nil
}

// AddPoints increments with a single upsert so concurrent credits never lose an update.
func (repo *performanceRepository) AddPoints(ctx context.Context, studentID, points int, exec ...core.DBExecutor) (performance.Performance, error) {
	ex := getExec(repo.db, exec)
	var row performanceRow
	q := ex.Rebind(`
		INSERT INTO performances (student_id, total_points, category, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (student_id) DO UPDATE
		SET total_points = performances.total_points + excluded.total_points, updated_at = excluded.updated_at
		RETURNING ` + performanceColumns)
	err := sqlx.GetContext(
		ctx, ex, &row, q,
		studentID, points, string(performance.CategoryPrincipiante), performance.NowFunc().UTC(),
	)
	if err != nil {
		return performance.Performance{}, errors.Wrap(err, "adding points")
	}
	return unboilPerformance(row), nil
}

func (repo *performanceRepository) SetPerformance(ctx context.Context, perf performance.Performance, exec ...core.DBExecutor) (performance.Performance, error) {
	if perf.UpdatedAt.IsZero() {
		perf.UpdatedAt = performance.NowFunc().UTC()
	}
	ex := getExec(repo.db, exec)
	var row performanceRow
	q := ex.Rebind(`
		INSERT INTO performances (student_id, total_points, category, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (student_id) DO UPDATE
		SET total_points = excluded.total_points, category = excluded.category, updated_at = excluded.updated_at
		RETURNING ` + performanceColumns)
	err := sqlx.GetContext(ctx, ex, &row, q, perf.StudentID, perf.TotalPoints, string(perf.Category), perf.UpdatedAt)
	if err != nil {
		return performance.Performance{}, errors.Wrap(err, "setting performance")
	}
	return unboilPerformance(row), nil
}

func (repo *performanceRepository) QueryStudents(ctx context.Context, group string, limit int) ([]performance.Student, error) {
	conds := []string{"u.role = 'student'", "u.is_active = ?"}
	args := []interface{}{true}
	if group != "" {
		conds = append(conds, `LOWER(u."group") = LOWER(?)`)
		args = append(args, group)
	}
	q := studentSelect + whereClause(conds) + ` ORDER BY total_points DESC, u.name ASC, u.id ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]performance.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, unboilStudent(row))
	}
	return students, nil
}

func (repo *performanceRepository) QueryGroups(ctx context.Context) ([]string, error) {
	groups := make([]string, 0)
	q := repo.db.Rebind(`
		SELECT DISTINCT "group" FROM users
		WHERE role = 'student' AND is_active = ? AND "group" <> ''
		ORDER BY "group"`)
	if err := sqlx.SelectContext(ctx, repo.db, &groups, q, true); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return groups, nil
}
