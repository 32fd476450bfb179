package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// recompute resets the totals of one student, or of every active student when studentID is 0.
func (cli *commandLine) recompute(ctx context.Context, studentID int) error {
	ids := []int{studentID}
	if studentID == 0 {
		students, err := cli.students.QueryStudents(ctx, "", 0)
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		ids = ids[:0]
		for _, st := range students {
			ids = append(ids, st.ID)
		}
	}

	for _, id := range ids {
		perf, err := cli.awardSvc.Recompute(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "recomputing student %d", id)
		}
		fmt.Fprintf(cli.out, "student %d: %d points (%s)\n", perf.StudentID, perf.TotalPoints, perf.Category)
	}
	return nil
}
