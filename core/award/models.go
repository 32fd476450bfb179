package award

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pensamiento/core/performance"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// Award is a points award a student confirms by entering its one-time code.
type Award struct {
	ID            int        `json:"id"`
	StudentID     int        `json:"student_id"`
	ExerciseID    int        `json:"exercise_id"`
	ActivityID    *int       `json:"activity_id"` // nil: not scoped to an activity
	PointsAwarded int        `json:"points_awarded"`
	Code          string     `json:"code,omitempty"` // only meaningful while PENDING
	Status        Status     `json:"status"`
	AwardedBy     *int       `json:"awarded_by"`
	AttemptNo     int        `json:"attempt_no"`
	IssuedAt      time.Time  `json:"issued_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

func (a Award) IsPending() bool { return a.Status == StatusPending }

// Redeemable reports whether a can still be redeemed with a code.
func (a Award) Redeemable() bool {
	return a.IsPending() && a.Code != "" && a.PointsAwarded > 0
}

// Redacted returns a copy of a without its code, for views shown to students.
func (a Award) Redacted() Award {
	a.Code = ""
	return a
}

type IssueRequest struct {
	StudentID     int  `json:"student_id" validate:"required"`
	ExerciseID    int  `json:"exercise_id" validate:"required"`
	ActivityID    *int `json:"activity_id" validate:"omitempty,min=1"`
	PointsAwarded int  `json:"points_awarded" validate:"required,min=1,max=100"`
}

func (r *IssueRequest) Validate(validate *validator.Validate) error {
	if r.ActivityID != nil && *r.ActivityID == 0 {
		r.ActivityID = nil
	}
	return validate.Struct(r)
}

type RedeemRequest struct {
	ExerciseID int    `json:"exercise_id" validate:"required"`
	ActivityID *int   `json:"activity_id"`
	Code       string `json:"code" validate:"required"`
}

func (r *RedeemRequest) Validate(validate *validator.Validate) error {
	if r.ActivityID != nil && *r.ActivityID == 0 {
		r.ActivityID = nil
	}
	r.Code = NormalizeCode(r.Code)
	return validate.Struct(r)
}

type RedeemByIDRequest struct {
	Code string `json:"code" validate:"required"`
}

func (r *RedeemByIDRequest) Validate(validate *validator.Validate) error {
	r.Code = NormalizeCode(r.Code)
	return validate.Struct(r)
}

// Redemption is the outcome of a successful redemption.
type Redemption struct {
	Award            Award                `json:"award"`
	PointsCredited   int                  `json:"points_credited"`
	TotalPoints      int                  `json:"total_points"`
	PreviousCategory performance.Category `json:"previous_category"`
	Category         performance.Category `json:"category"`
	Promoted         bool                 `json:"promoted"`
}

// QueryFilter applies AND operation on its non-zero fields.
type QueryFilter struct {
	StudentID  int    `query:"student_id"`
	ExerciseID int    `query:"exercise_id"`
	ActivityID int    `query:"activity_id"`
	Status     Status `query:"status"`
}
