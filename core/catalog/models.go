package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pensamiento/core"
)

type ActivityStatus string

const (
	ActivityScheduled ActivityStatus = "SCHEDULED"
	ActivityActive    ActivityStatus = "ACTIVE"
	ActivityCompleted ActivityStatus = "COMPLETED"
)

type Activity struct {
	ID          int            `json:"id"`
	Group       string         `json:"group"`
	ProfessorID *int           `json:"professor_id"`
	Title       string         `json:"title"`
	StartTime   *time.Time     `json:"start_time"`
	EndTime     *time.Time     `json:"end_time"`
	Status      ActivityStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Exercise struct {
	ID         int       `json:"id"`
	ActivityID int       `json:"activity_id"`
	Title      string    `json:"title"`
	Statement  string    `json:"statement"`
	Difficulty int       `json:"difficulty"`
	MaxPoints  int       `json:"max_points"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewActivity struct {
	Group     string         `json:"group" toml:"group" validate:"required,max=50,groupname"`
	Title     string         `json:"title" toml:"title" validate:"required,max=200"`
	StartTime *time.Time     `json:"start_time" toml:"start_time"`
	EndTime   *time.Time     `json:"end_time" toml:"end_time"`
	Status    ActivityStatus `json:"status" toml:"status" validate:"omitempty,oneof=SCHEDULED ACTIVE COMPLETED"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.Group = core.CleanString(na.Group)
	na.Title = core.CleanString(na.Title)
	if na.Status == "" {
		na.Status = ActivityScheduled
	}
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.StartTime != nil && na.EndTime != nil && !na.EndTime.After(*na.StartTime) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "end_time must be after start_time"})
	}
	return nil
}

type NewExercise struct {
	Title      string `json:"title" toml:"title" validate:"required,max=200"`
	Statement  string `json:"statement" toml:"statement"`
	Difficulty int    `json:"difficulty" toml:"difficulty" validate:"min=0,max=10"`
	MaxPoints  int    `json:"max_points" toml:"max_points" validate:"required,min=1,max=100"`
}

func (ne *NewExercise) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Statement = core.CleanString(ne.Statement)
	return validate.Struct(ne)
}

type ActivityFilter struct {
	Group  string         `query:"group"`
	Status ActivityStatus `query:"status"`
}
