// Package scoreboard defines the live feed of redeemed awards shown per activity.
package scoreboard

import (
	"context"
	"fmt"
	"time"
)

const DefaultRecentSize = 20

type Event struct {
	ID            string    `json:"id"`
	ActivityID    int       `json:"activity_id"`
	StudentID     int       `json:"student_id"`
	StudentName   string    `json:"student_name"`
	ExerciseID    int       `json:"exercise_id"`
	ExerciseTitle string    `json:"exercise_title"`
	Points        int       `json:"points"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// Publisher stores and broadcasts scoreboard events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	// Recent returns up to limit events of an activity, newest first.
	Recent(ctx context.Context, activityID, limit int) ([]Event, error)
}

// RedeemedMessage is the feed line shown for a redeemed award.
func RedeemedMessage(studentName, exerciseTitle string, points int) string {
	return fmt.Sprintf("%s completed %q (+%d points)", studentName, exerciseTitle, points)
}
