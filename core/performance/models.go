package performance

import "time"

// Performance is the running points aggregate of a student.
type Performance struct {
	StudentID   int       `json:"student_id"`
	TotalPoints int       `json:"total_points"`
	Category    Category  `json:"category"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Student is the read model of a student joined with their performance.
type Student struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"-"`
	Group       string   `json:"group"`
	TotalPoints int      `json:"total_points"`
	Category    Category `json:"category"`
}

// Initial returns the performance of a student who never redeemed an award.
func Initial(studentID int) Performance {
	return Performance{StudentID: studentID, Category: CategoryPrincipiante}
}

type LeaderboardEntry struct {
	Rank        int      `json:"rank"`
	StudentID   int      `json:"student_id"`
	Name        string   `json:"name"`
	TotalPoints int      `json:"total_points"`
	Category    Category `json:"category"`
}

type Leaderboard struct {
	Group   string             `json:"group"`
	Entries []LeaderboardEntry `json:"entries"`
}
