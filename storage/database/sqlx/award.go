package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
)

const awardColumns = `id, student_id, exercise_id, activity_id, points_awarded, code, status, awarded_by, attempt_no, issued_at, completed_at`

type awardRow struct {
	ID            int       `db:"id"`
	StudentID     int       `db:"student_id"`
	ExerciseID    int       `db:"exercise_id"`
	ActivityID    null.Int  `db:"activity_id"`
	PointsAwarded int       `db:"points_awarded"`
	Code          string    `db:"code"`
	Status        string    `db:"status"`
	AwardedBy     null.Int  `db:"awarded_by"`
	AttemptNo     int       `db:"attempt_no"`
	IssuedAt      time.Time `db:"issued_at"`
	CompletedAt   null.Time `db:"completed_at"`
}

func unboilAward(row awardRow) award.Award {
	awd := award.Award{
		ID:            row.ID,
		StudentID:     row.StudentID,
		ExerciseID:    row.ExerciseID,
		ActivityID:    row.ActivityID.Ptr(),
		PointsAwarded: row.PointsAwarded,
		Code:          row.Code,
		Status:        award.Status(row.Status),
		AwardedBy:     row.AwardedBy.Ptr(),
		AttemptNo:     row.AttemptNo,
		IssuedAt:      row.IssuedAt.UTC(),
	}
	if row.CompletedAt.Valid {
		t := row.CompletedAt.Time.UTC()
		awd.CompletedAt = &t
	}
	return awd
}

type awardRepository struct {
	db *sqlx.DB
}

var _ award.Repository = (*awardRepository)(nil)

func NewAwardRepository(db *sqlx.DB) award.Repository {
	return &awardRepository{db: db}
}

func (repo *awardRepository) CreateAward(ctx context.Context, awd award.Award, exec ...core.DBExecutor) (award.Award, error) {
	ex := getExec(repo.db, exec)
	q := ex.Rebind(`
		INSERT INTO awards (student_id, exercise_id, activity_id, points_awarded, code, status, awarded_by, attempt_no, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := ex.QueryRowxContext(
		ctx, q,
		awd.StudentID, awd.ExerciseID, null.IntFromPtr(awd.ActivityID), awd.PointsAwarded, awd.Code,
		string(awd.Status), null.IntFromPtr(awd.AwardedBy), awd.AttemptNo, awd.IssuedAt,
	).Scan(&awd.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return award.Award{}, award.ErrPendingExists
		}
		return award.Award{}, errors.Wrap(err, "inserting award")
	}
	return awd, nil
}

func (repo *awardRepository) ReissueAward(ctx context.Context, awd award.Award, exec ...core.DBExecutor) (award.Award, error) {
	ex := getExec(repo.db, exec)
	q := ex.Rebind(`
		UPDATE awards
		SET code = ?, points_awarded = ?, activity_id = ?, awarded_by = ?, issued_at = ?
		WHERE id = ? AND status = ?`)
	res, err := ex.ExecContext(
		ctx, q,
		awd.Code, awd.PointsAwarded, null.IntFromPtr(awd.ActivityID), null.IntFromPtr(awd.AwardedBy), awd.IssuedAt,
		awd.ID, string(award.StatusPending),
	)
	if err != nil {
		return award.Award{}, errors.Wrap(err, "reissuing award")
	}
	if err = checkRowsAffected(res, award.ErrNotFound); err != nil {
		return award.Award{}, err
	}
	return repo.GetAward(ctx, awd.ID, exec...)
}

func (repo *awardRepository) CompleteAward(ctx context.Context, id int, completedAt time.Time, exec ...core.DBExecutor) (award.Award, error) {
	ex := getExec(repo.db, exec)
	q := ex.Rebind(`
		UPDATE awards
		SET status = ?, code = '', completed_at = ?
		WHERE id = ? AND status = ?`)
	res, err := ex.ExecContext(ctx, q, string(award.StatusCompleted), completedAt, id, string(award.StatusPending))
	if err != nil {
		return award.Award{}, errors.Wrap(err, "completing award")
	}
	if err = checkRowsAffected(res, award.ErrNotFound); err != nil {
		return award.Award{}, err
	}
	return repo.GetAward(ctx, id, exec...)
}

func (repo *awardRepository) GetAward(ctx context.Context, id int, exec ...core.DBExecutor) (award.Award, error) {
	ex := getExec(repo.db, exec)
	var row awardRow
	q := ex.Rebind(`SELECT ` + awardColumns + ` FROM awards WHERE id = ?`)
	if err := sqlx.GetContext(ctx, ex, &row, q, id); err != nil {
		return award.Award{}, trapNoRowsErr(err, award.ErrNotFound)
	}
	return unboilAward(row), nil
}

func (repo *awardRepository) QueryAwards(ctx context.Context, filter award.QueryFilter, exec ...core.DBExecutor) ([]award.Award, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.StudentID != 0 {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.ExerciseID != 0 {
		conds = append(conds, "exercise_id = ?")
		args = append(args, filter.ExerciseID)
	}
	if filter.ActivityID != 0 {
		conds = append(conds, "activity_id = ?")
		args = append(args, filter.ActivityID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}

	ex := getExec(repo.db, exec)
	var rows []awardRow
	q := ex.Rebind(`SELECT ` + awardColumns + ` FROM awards` + whereClause(conds) + ` ORDER BY id DESC`)
	if err := sqlx.SelectContext(ctx, ex, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying awards")
	}
	awards := make([]award.Award, 0, len(rows))
	for _, row := range rows {
		awards = append(awards, unboilAward(row))
	}
	return awards, nil
}

func (repo *awardRepository) CountAwards(ctx context.Context, studentID, exerciseID int, exec ...core.DBExecutor) (int, error) {
	ex := getExec(repo.db, exec)
	var count int
	q := ex.Rebind(`SELECT COUNT(*) FROM awards WHERE student_id = ? AND exercise_id = ?`)
	if err := sqlx.GetContext(ctx, ex, &count, q, studentID, exerciseID); err != nil {
		return 0, errors.Wrap(err, "counting awards")
	}
	return count, nil
}

func (repo *awardRepository) SumCompletedPoints(ctx context.Context, studentID int, exec ...core.DBExecutor) (int, error) {
	ex := getExec(repo.db, exec)
	var total int
	q := ex.Rebind(`SELECT COALESCE(SUM(points_awarded), 0) FROM awards WHERE student_id = ? AND status = ?`)
	if err := sqlx.GetContext(ctx, ex, &total, q, studentID, string(award.StatusCompleted)); err != nil {
		return 0, errors.Wrap(err, "summing completed points")
	}
	return total, nil
}
