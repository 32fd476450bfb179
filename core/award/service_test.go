package award_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/user"
	emailsvc "github.com/trezcool/pensamiento/services/email"
	scoreboardsvc "github.com/trezcool/pensamiento/services/scoreboard"
	inmemdb "github.com/trezcool/pensamiento/storage/database/inmem"
	"github.com/trezcool/pensamiento/tests"
)

type fixture struct {
	svc      *award.Service
	repo     award.Repository
	catRepo  catalog.Repository
	students performance.Repository
	board    *scoreboardsvc.MemoryPublisher
	logger   *testutil.Logger

	prof     user.User
	alice    user.User
	bob      user.User
	activity catalog.Activity
	exercise catalog.Exercise
}

func setup(t *testing.T, opts award.Options) *fixture {
	t.Helper()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	validate, _ := testutil.NewValidator()
	conf := core.NewTestConfig()

	f := &fixture{
		repo:     inmemdb.NewAwardRepository(db),
		catRepo:  inmemdb.NewCatalogRepository(db),
		students: inmemdb.NewPerformanceRepository(db),
		board:    scoreboardsvc.NewMemoryPublisher(conf.Scoreboard.Size),
		logger:   new(testutil.Logger),
	}
	f.svc = award.NewService(award.Deps{
		Tx:         db,
		Repo:       f.repo,
		Students:   f.students,
		Catalog:    catalog.NewService(f.catRepo),
		Scoreboard: f.board,
		Mailer:     emailsvc.NewConsoleServiceMock(conf, f.logger),
		Logger:     f.logger,
		Validate:   validate,
	}, opts)

	f.prof = testutil.CreateUser(t, usrRepo, "Prof", "prof@test.com", "", user.RoleProfessor, "")
	f.alice = testutil.CreateUser(t, usrRepo, "Alice", "alice@test.com", "A1", user.RoleStudent, "")
	f.bob = testutil.CreateUser(t, usrRepo, "Bob", "bob@test.com", "A1", user.RoleStudent, "")
	f.activity, f.exercise = testutil.CreateExercise(t, f.catRepo, "A1", "Loops", &f.prof.ID)
	return f
}

// codes makes the service hand out codes in order.
func codes(t *testing.T, cs ...string) {
	var mu sync.Mutex
	restore := award.MockGenerateCode(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := cs[0]
		if len(cs) > 1 {
			cs = cs[1:]
		}
		return code, nil
	})
	t.Cleanup(restore)
}

func (f *fixture) issue(t *testing.T, studentID, points int, activityID *int) award.Award {
	t.Helper()
	awd, _, err := f.svc.Issue(context.Background(), f.prof.ID, award.IssueRequest{
		StudentID: studentID, ExerciseID: f.exercise.ID, ActivityID: activityID, PointsAwarded: points,
	})
	require.NoError(t, err, "Issue()")
	return awd
}

func (f *fixture) total(t *testing.T, studentID int) performance.Performance {
	t.Helper()
	perf, err := f.students.GetPerformance(context.Background(), studentID)
	require.NoError(t, err)
	return perf
}

func TestService_Issue(t *testing.T) {
	f := setup(t, award.Options{})
	ctx := context.Background()

	awd, created, err := f.svc.Issue(ctx, f.prof.ID, award.IssueRequest{
		StudentID: f.alice.ID, ExerciseID: f.exercise.ID, ActivityID: core.IntPtr(f.activity.ID), PointsAwarded: 30,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, award.StatusPending, awd.Status)
	assert.Equal(t, 30, awd.PointsAwarded)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, awd.Code)
	assert.Equal(t, 1, awd.AttemptNo)
	assert.Equal(t, f.prof.ID, *awd.AwardedBy)
	assert.Equal(t, f.activity.ID, *awd.ActivityID)
	assert.Nil(t, awd.CompletedAt)

	t.Run("activity id 0 means unscoped", func(t *testing.T) {
		awd, _, err := f.svc.Issue(ctx, 0, award.IssueRequest{
			StudentID: f.bob.ID, ExerciseID: f.exercise.ID, ActivityID: core.IntPtr(0), PointsAwarded: 5,
		})
		require.NoError(t, err)
		assert.Nil(t, awd.ActivityID)
		assert.Nil(t, awd.AwardedBy, "tooling issues awards without issuer")
	})

	other, _ := testutil.CreateExercise(t, f.catRepo, "A1", "Recursion", nil)
	invalid := []struct {
		name      string
		req       award.IssueRequest
		wantField string
	}{
		{name: "no points", req: award.IssueRequest{StudentID: f.alice.ID, ExerciseID: f.exercise.ID}, wantField: "points_awarded"},
		{name: "negative points", req: award.IssueRequest{StudentID: f.alice.ID, ExerciseID: f.exercise.ID, PointsAwarded: -5}, wantField: "points_awarded"},
		{name: "too many points", req: award.IssueRequest{StudentID: f.alice.ID, ExerciseID: f.exercise.ID, PointsAwarded: 101}, wantField: "points_awarded"},
		{name: "no student", req: award.IssueRequest{ExerciseID: f.exercise.ID, PointsAwarded: 10}, wantField: "student_id"},
		{name: "unknown student", req: award.IssueRequest{StudentID: 999, ExerciseID: f.exercise.ID, PointsAwarded: 10}, wantField: "student_id"},
		{name: "not a student", req: award.IssueRequest{StudentID: f.prof.ID, ExerciseID: f.exercise.ID, PointsAwarded: 10}, wantField: "student_id"},
		{name: "unknown exercise", req: award.IssueRequest{StudentID: f.alice.ID, ExerciseID: 999, PointsAwarded: 10}, wantField: "exercise_id"},
		{
			name:      "exercise of another activity",
			req:       award.IssueRequest{StudentID: f.alice.ID, ExerciseID: f.exercise.ID, ActivityID: core.IntPtr(other.ID), PointsAwarded: 10},
			wantField: "activity_id",
		},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Issue(ctx, f.prof.ID, tt.req)
			require.Error(t, err)
			assert.Contains(t, fieldsOf(err), tt.wantField)
		})
	}
}

func fieldsOf(err error) []string {
	var fields []string
	var vErrs validator.ValidationErrors
	var cErr *core.ValidationError
	switch {
	case errors.As(err, &vErrs):
		for _, fe := range vErrs {
			fields = append(fields, fe.Field())
		}
	case errors.As(err, &cErr):
		for _, fe := range cErr.Fields {
			fields = append(fields, fe.Field)
		}
	}
	return fields
}

func TestService_Issue_overwrite(t *testing.T) {
	f := setup(t, award.Options{})
	ctx := context.Background()
	codes(t, "AAAAAA", "BBBBBB")

	first := f.issue(t, f.alice.ID, 30, nil)
	second, created, err := f.svc.Issue(ctx, f.prof.ID, award.IssueRequest{
		StudentID: f.alice.ID, ExerciseID: f.exercise.ID, PointsAwarded: 45,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "BBBBBB", second.Code)
	assert.Equal(t, 45, second.PointsAwarded)

	pending, err := f.repo.QueryAwards(ctx, award.QueryFilter{StudentID: f.alice.ID, Status: award.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1, "at most one pending award per student and exercise")

	_, err = f.svc.Redeem(ctx, f.alice.ID, award.RedeemRequest{ExerciseID: f.exercise.ID, Code: "AAAAAA"})
	assert.ErrorIs(t, err, award.ErrCodeMismatch, "only the latest code is valid")

	res, err := f.svc.Redeem(ctx, f.alice.ID, award.RedeemRequest{ExerciseID: f.exercise.ID, Code: "BBBBBB"})
	require.NoError(t, err)
	assert.Equal(t, 45, res.PointsCredited)

	t.Run("a new attempt after completion", func(t *testing.T) {
		codes(t, "CCCCCC")
		awd, created, err := f.svc.Issue(ctx, f.prof.ID, award.IssueRequest{
			StudentID: f.alice.ID, ExerciseID: f.exercise.ID, PointsAwarded: 10,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, first.ID, awd.ID)
		assert.Equal(t, 2, awd.AttemptNo)
	})
}

func TestService_Issue_reject(t *testing.T) {
	f := setup(t, award.Options{ReissuePolicy: core.ReissueReject})
	first := f.issue(t, f.alice.ID, 30, nil)

	_, _, err := f.svc.Issue(context.Background(), f.prof.ID, award.IssueRequest{
		StudentID: f.alice.ID, ExerciseID: f.exercise.ID, PointsAwarded: 45,
	})
	assert.ErrorIs(t, err, award.ErrPendingExists)

	got, err := f.svc.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Code, got.Code, "the pending award is left untouched")
}

// racingRepo hides the pending awards from the first lookup, as when another issuer commits
// between the lookup and the insert.
type racingRepo struct {
	award.Repository
	raced bool
}

func (r *racingRepo) QueryAwards(ctx context.Context, filter award.QueryFilter, exec ...core.DBExecutor) ([]award.Award, error) {
	pending, err := r.Repository.QueryAwards(ctx, filter, exec...)
	if err != nil || r.raced || filter.StudentID == 0 {
		return pending, err
	}
	r.raced = true
	return nil, nil
}

func TestService_Issue_concurrentFirstIssuance(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		wantErr error
	}{
		{name: "overwrite reissues the rival award", policy: core.ReissueOverwrite},
		{name: "reject", policy: core.ReissueReject, wantErr: award.ErrPendingExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, award.Options{})
			rival, err := f.repo.CreateAward(context.Background(), award.Award{
				StudentID: f.alice.ID, ExerciseID: f.exercise.ID, PointsAwarded: 5, Code: "RIVAL1",
				Status: award.StatusPending, AttemptNo: 1, IssuedAt: award.NowFunc().UTC(),
			})
			require.NoError(t, err)
			repo := &racingRepo{Repository: f.repo}
			deps := f.svc.Deps
			deps.Repo = repo
			svc := award.NewService(deps, award.Options{ReissuePolicy: tt.policy})

			awd, created, err := svc.Issue(context.Background(), f.prof.ID, award.IssueRequest{
				StudentID: f.alice.ID, ExerciseID: f.exercise.ID, PointsAwarded: 40,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, rival.ID, awd.ID)
			assert.Equal(t, 40, awd.PointsAwarded)
			assert.NotEqual(t, "RIVAL1", awd.Code)

			pending, err := f.repo.QueryAwards(context.Background(), award.QueryFilter{
				StudentID: f.alice.ID, Status: award.StatusPending,
			})
			require.NoError(t, err)
			assert.Len(t, pending, 1)
		})
	}
}

func TestService_Issue_codeExhausted(t *testing.T) {
	f := setup(t, award.Options{CodeAttempts: 3})
	codes(t, "AAAAAA")
	f.issue(t, f.alice.ID, 30, nil)

	_, _, err := f.svc.Issue(context.Background(), f.prof.ID, award.IssueRequest{
		StudentID: f.bob.ID, ExerciseID: f.exercise.ID, PointsAwarded: 30,
	})
	assert.ErrorIs(t, err, award.ErrCodeExhausted)
}

func TestService_Redeem(t *testing.T) {
	f := setup(t, award.Options{})
	ctx := context.Background()
	codes(t, "K7P2QX")
	awd := f.issue(t, f.alice.ID, 30, core.IntPtr(f.activity.ID))

	failures := []struct {
		name      string
		studentID int
		req       award.RedeemRequest
		wantErr   error
	}{
		{name: "wrong code", studentID: f.alice.ID, req: award.RedeemRequest{ExerciseID: f.exercise.ID, Code: "K7P2QY"}, wantErr: award.ErrCodeMismatch},
		{name: "malformed code", studentID: f.alice.ID, req: award.RedeemRequest{ExerciseID: f.exercise.ID, Code: "K7P2"}, wantErr: award.ErrCodeMismatch},
		{name: "nothing pending", studentID: f.bob.ID, req: award.RedeemRequest{ExerciseID: f.exercise.ID, Code: "K7P2QX"}, wantErr: award.ErrNotFound},
		{name: "other exercise", studentID: f.alice.ID, req: award.RedeemRequest{ExerciseID: 999, Code: "K7P2QX"}, wantErr: award.ErrNotFound},
		{
			name: "other activity", studentID: f.alice.ID,
			req:     award.RedeemRequest{ExerciseID: f.exercise.ID, ActivityID: core.IntPtr(999), Code: "K7P2QX"},
			wantErr: award.ErrNotFound,
		},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Redeem(ctx, tt.studentID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.total(t, f.alice.ID).TotalPoints, "failed attempts credit nothing")

	_, err := f.svc.Redeem(ctx, f.alice.ID, award.RedeemRequest{ExerciseID: f.exercise.ID})
	assert.Contains(t, fieldsOf(err), "code")

	res, err := f.svc.Redeem(ctx, f.alice.ID, award.RedeemRequest{
		ExerciseID: f.exercise.ID, ActivityID: core.IntPtr(f.activity.ID), Code: " k7p2qx ",
	})
	require.NoError(t, err)
	assert.Equal(t, awd.ID, res.Award.ID)
	assert.Equal(t, award.StatusCompleted, res.Award.Status)
	assert.Empty(t, res.Award.Code)
	assert.NotNil(t, res.Award.CompletedAt)
	assert.Equal(t, 30, res.PointsCredited)
	assert.Equal(t, 30, res.TotalPoints)
	assert.Equal(t, 30, f.total(t, f.alice.ID).TotalPoints)

	_, err = f.svc.Redeem(ctx, f.alice.ID, award.RedeemRequest{ExerciseID: f.exercise.ID, Code: "K7P2QX"})
	assert.ErrorIs(t, err, award.ErrNotFound, "an award is redeemed once")
	assert.Equal(t, 30, f.total(t, f.alice.ID).TotalPoints)

	t.Run("notifications", func(t *testing.T) {
		events, err := f.board.Recent(ctx, f.activity.ID, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, `Alice completed "Loops exercise" (+30 points)`, events[0].Message)
		assert.NotEmpty(t, events[0].ID)

		var sent []string
		for _, msg := range emailsvc.SentMessages() {
			if len(msg.To) > 0 && msg.To[0].Address == "alice@test.com" {
				sent = append(sent, msg.Subject)
			}
		}
		assert.Contains(t, sent, "+30 points confirmed")
	})
}

func TestService_Redeem_promotion(t *testing.T) {
	f := setup(t, award.Options{})
	ctx := context.Background()
	_, err := f.students.SetPerformance(ctx, performance.Performance{
		StudentID: f.alice.ID, TotalPoints: 240, Category: performance.CategoryPrincipiante,
	})
	require.NoError(t, err)
	awd := f.issue(t, f.alice.ID, 15, nil)

	res, err := f.svc.Redeem(ctx, f.alice.ID, award.RedeemRequest{ExerciseID: f.exercise.ID, Code: awd.Code})
	require.NoError(t, err)
	assert.Equal(t, 255, res.TotalPoints)
	assert.Equal(t, performance.CategoryPrincipiante, res.PreviousCategory)
	assert.Equal(t, performance.CategoryKiller, res.Category)
	assert.True(t, res.Promoted)

	perf := f.total(t, f.alice.ID)
	assert.Equal(t, 255, perf.TotalPoints)
	assert.Equal(t, performance.CategoryKiller, perf.Category)
}

func TestService_Redeem_activityMatching(t *testing.T) {
	tests := []struct {
		name        string
		strict      bool
		awdActivity bool // award scoped to the activity
		reqActivity bool // request names the activity
		wantErr     error
	}{
		{name: "loose: unscoped award, scoped request", reqActivity: true},
		{name: "loose: scoped award, request without activity", awdActivity: true},
		{name: "strict: unscoped award, scoped request", strict: true, reqActivity: true, wantErr: award.ErrNotFound},
		{name: "strict: scoped award, request without activity", strict: true, awdActivity: true, wantErr: award.ErrNotFound},
		{name: "strict: exact", strict: true, awdActivity: true, reqActivity: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, award.Options{StrictActivityMatch: tt.strict})
			var awdActivity, reqActivity *int
			if tt.awdActivity {
				awdActivity = core.IntPtr(f.activity.ID)
			}
			if tt.reqActivity {
				reqActivity = core.IntPtr(f.activity.ID)
			}
			awd := f.issue(t, f.alice.ID, 20, awdActivity)

			res, err := f.svc.Redeem(context.Background(), f.alice.ID, award.RedeemRequest{
				ExerciseID: f.exercise.ID, ActivityID: reqActivity, Code: awd.Code,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, awd.ID, res.Award.ID)
		})
	}
}

func TestService_Redeem_concurrent(t *testing.T) {
	f := setup(t, award.Options{})
	awd := f.issue(t, f.alice.ID, 25, nil)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notFound  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Redeem(context.Background(), f.alice.ID, award.RedeemRequest{
				ExerciseID: f.exercise.ID, Code: awd.Code,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, award.ErrNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, notFound)
	assert.Equal(t, 25, f.total(t, f.alice.ID).TotalPoints)
}

func TestService_RedeemByID(t *testing.T) {
	f := setup(t, award.Options{})
	ctx := context.Background()
	codes(t, "Q1W2E3")
	awd := f.issue(t, f.alice.ID, 40, nil)

	_, err := f.svc.RedeemByID(ctx, f.bob.ID, awd.ID, award.RedeemByIDRequest{Code: "Q1W2E3"})
	assert.ErrorIs(t, err, award.ErrNotOwner)
	_, err = f.svc.RedeemByID(ctx, f.alice.ID, 999, award.RedeemByIDRequest{Code: "Q1W2E3"})
	assert.ErrorIs(t, err, award.ErrNotFound)
	_, err = f.svc.RedeemByID(ctx, f.alice.ID, awd.ID, award.RedeemByIDRequest{Code: "Q1W2E4"})
	assert.ErrorIs(t, err, award.ErrCodeMismatch)

	res, err := f.svc.RedeemByID(ctx, f.alice.ID, awd.ID, award.RedeemByIDRequest{Code: "q1w2e3"})
	require.NoError(t, err)
	assert.Equal(t, 40, res.TotalPoints)

	_, err = f.svc.RedeemByID(ctx, f.alice.ID, awd.ID, award.RedeemByIDRequest{Code: "Q1W2E3"})
	assert.ErrorIs(t, err, award.ErrNotFound)
}

func TestService_Recompute(t *testing.T) {
	f := setup(t, award.Options{})
	ctx := context.Background()

	for _, points := range []int{100, 90, 80} {
		awd := f.issue(t, f.alice.ID, points, nil)
		_, err := f.svc.Redeem(ctx, f.alice.ID, award.RedeemRequest{ExerciseID: f.exercise.ID, Code: awd.Code})
		require.NoError(t, err)
	}
	f.issue(t, f.alice.ID, 50, nil) // pending awards do not count

	_, err := f.students.SetPerformance(ctx, performance.Performance{StudentID: f.alice.ID, TotalPoints: 3, Category: performance.CategoryPro})
	require.NoError(t, err)

	perf, err := f.svc.Recompute(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 270, perf.TotalPoints)
	assert.Equal(t, performance.CategoryKiller, perf.Category)
	assert.Equal(t, perf.TotalPoints, f.total(t, f.alice.ID).TotalPoints)

	_, err = f.svc.Recompute(ctx, 999)
	assert.ErrorIs(t, err, performance.ErrStudentNotFound)
}

func TestService_QueryByStudent(t *testing.T) {
	f := setup(t, award.Options{})
	f.issue(t, f.alice.ID, 10, nil)
	f.issue(t, f.bob.ID, 10, nil)

	awards, err := f.svc.QueryByStudent(context.Background(), f.alice.ID)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, f.alice.ID, awards[0].StudentID)
	assert.Empty(t, awards[0].Code)
}
