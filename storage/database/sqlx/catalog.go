package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pensamiento/core/catalog"
)

const (
	activityColumns = `id, "group", professor_id, title, start_time, end_time, status, created_at`
	exerciseColumns = `id, activity_id, title, statement, difficulty, max_points, created_at`
)

type activityRow struct {
	ID          int       `db:"id"`
	Group       string    `db:"group"`
	ProfessorID null.Int  `db:"professor_id"`
	Title       string    `db:"title"`
	StartTime   null.Time `db:"start_time"`
	EndTime     null.Time `db:"end_time"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

func unboilActivity(row activityRow) catalog.Activity {
	return catalog.Activity{
		ID:          row.ID,
		Group:       row.Group,
		ProfessorID: row.ProfessorID.Ptr(),
		Title:       row.Title,
		StartTime:   row.StartTime.Ptr(),
		EndTime:     row.EndTime.Ptr(),
		Status:      catalog.ActivityStatus(row.Status),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type exerciseRow struct {
	ID         int       `db:"id"`
	ActivityID int       `db:"activity_id"`
	Title      string    `db:"title"`
	Statement  string    `db:"statement"`
	Difficulty int       `db:"difficulty"`
	MaxPoints  int       `db:"max_points"`
	CreatedAt  time.Time `db:"created_at"`
}

func unboilExercise(row exerciseRow) catalog.Exercise {
	return catalog.Exercise{
		ID:         row.ID,
		ActivityID: row.ActivityID,
		Title:      row.Title,
		Statement:  row.Statement,
		Difficulty: row.Difficulty,
		MaxPoints:  row.MaxPoints,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) CreateActivity(ctx context.Context, act catalog.Activity) (catalog.Activity, error) {
	q := repo.db.Rebind(`
		INSERT INTO activities ("group", professor_id, title, start_time, end_time, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := repo.db.QueryRowxContext(
		ctx, q,
		act.Group, null.IntFromPtr(act.ProfessorID), act.Title,
		null.TimeFromPtr(act.StartTime), null.TimeFromPtr(act.EndTime), string(act.Status), act.CreatedAt,
	).Scan(&act.ID)
	if err != nil {
		return catalog.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return act, nil
}

func (repo *catalogRepository) GetActivity(ctx context.Context, id int) (catalog.Activity, error) {
	var row activityRow
	q := repo.db.Rebind(`SELECT ` + activityColumns + ` FROM activities WHERE id = ?`)
	if err := sqlx.GetContext(ctx, repo.db, &row, q, id); err != nil {
		return catalog.Activity{}, trapNoRowsErr(err, catalog.ErrActivityNotFound)
	}
	return unboilActivity(row), nil
}

func (repo *catalogRepository) QueryActivities(ctx context.Context, filter catalog.ActivityFilter) ([]catalog.Activity, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Group != "" {
		conds = append(conds, `LOWER("group") = LOWER(?)`)
		args = append(args, filter.Group)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}

	var rows []activityRow
	q := repo.db.Rebind(`SELECT ` + activityColumns + ` FROM activities` + whereClause(conds) + ` ORDER BY id`)
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	acts := make([]catalog.Activity, 0, len(rows))
	for _, row := range rows {
		acts = append(acts, unboilActivity(row))
	}
	return acts, nil
}

func (repo *catalogRepository) CreateExercise(ctx context.Context, ex catalog.Exercise) (catalog.Exercise, error) {
	q := repo.db.Rebind(`
		INSERT INTO exercises (activity_id, title, statement, difficulty, max_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := repo.db.QueryRowxContext(
		ctx, q, ex.ActivityID, ex.Title, ex.Statement, ex.Difficulty, ex.MaxPoints, ex.CreatedAt,
	).Scan(&ex.ID)
	if err != nil {
		return catalog.Exercise{}, errors.Wrap(err, "inserting exercise")
	}
	return ex, nil
}

func (repo *catalogRepository) GetExercise(ctx context.Context, id int) (catalog.Exercise, error) {
	var row exerciseRow
	q := repo.db.Rebind(`SELECT ` + exerciseColumns + ` FROM exercises WHERE id = ?`)
	if err := sqlx.GetContext(ctx, repo.db, &row, q, id); err != nil {
		return catalog.Exercise{}, trapNoRowsErr(err, catalog.ErrExerciseNotFound)
	}
	return unboilExercise(row), nil
}

func (repo *catalogRepository) QueryExercises(ctx context.Context, activityID int) ([]catalog.Exercise, error) {
	var rows []exerciseRow
	q := repo.db.Rebind(`SELECT ` + exerciseColumns + ` FROM exercises WHERE activity_id = ? ORDER BY id`)
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, activityID); err != nil {
		return nil, errors.Wrap(err, "querying exercises")
	}
	exs := make([]catalog.Exercise, 0, len(rows))
	for _, row := range rows {
		exs = append(exs, unboilExercise(row))
	}
	return exs, nil
}
