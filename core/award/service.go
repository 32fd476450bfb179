package award

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/scoreboard"
)

var (
	// errors
	ErrNotFound      = errors.New("invalid code or nothing pending")
	ErrCodeMismatch  = errors.New("invalid code")
	ErrPendingExists = errors.New("a pending award already exists for this student and exercise")
	ErrNotOwner      = errors.New("award belongs to another student")
	ErrCodeExhausted = errors.New("could not generate a unique code")

	NowFunc      = time.Now     // mockable
	generateCode = GenerateCode // mockable
)

const defaultCodeAttempts = 10

type (
	Repository interface {
		CreateAward(ctx context.Context, awd Award, exec ...core.DBExecutor) (Award, error)
		// ReissueAward overwrites the code, points, activity, issuer and issue time of a PENDING award.
		// It returns ErrNotFound once the award is no longer pending.
		ReissueAward(ctx context.Context, awd Award, exec ...core.DBExecutor) (Award, error)
		// CompleteAward moves a PENDING award to COMPLETED and clears its code, as a single
		// compare-and-swap on the status. It returns ErrNotFound when the award is not pending.
		CompleteAward(ctx context.Context, id int, completedAt time.Time, exec ...core.DBExecutor) (Award, error)
		GetAward(ctx context.Context, id int, exec ...core.DBExecutor) (Award, error)
		QueryAwards(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Award, error)
		CountAwards(ctx context.Context, studentID, exerciseID int, exec ...core.DBExecutor) (int, error)
		SumCompletedPoints(ctx context.Context, studentID int, exec ...core.DBExecutor) (int, error)
	}

	// StudentStore is the part of the student aggregate the award workflow reads and mutates.
	StudentStore interface {
		GetStudent(ctx context.Context, id int, exec ...core.DBExecutor) (performance.Student, error)
		AddPoints(ctx context.Context, studentID, points int, exec ...core.DBExecutor) (performance.Performance, error)
		SetPerformance(ctx context.Context, perf performance.Performance, exec ...core.DBExecutor) (performance.Performance, error)
	}

	Catalog interface {
		GetExercise(ctx context.Context, id int) (catalog.Exercise, error)
	}

	Options struct {
		ReissuePolicy       string // core.ReissueOverwrite (default) | core.ReissueReject
		StrictActivityMatch bool
		CodeAttempts        int
	}

	Deps struct {
		Tx         core.Transactor
		Repo       Repository
		Students   StudentStore
		Catalog    Catalog
		Scoreboard scoreboard.Publisher // optional
		Mailer     core.EmailService    // optional
		Logger     core.Logger
		Validate   *validator.Validate
	}

	Service struct {
		Deps
		opts Options
	}
)

func NewService(deps Deps, opts Options) *Service {
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = defaultCodeAttempts
	}
	if opts.ReissuePolicy != core.ReissueReject {
		opts.ReissuePolicy = core.ReissueOverwrite
	}
	return &Service{Deps: deps, opts: opts}
}

// Issue creates a PENDING award with a fresh code for the student and exercise of req.
// An existing PENDING award for the same student and exercise is overwritten, or rejected with
// ErrPendingExists under the reject policy. created is false when an award was overwritten.
func (svc *Service) Issue(ctx context.Context, issuerID int, req IssueRequest) (awd Award, created bool, err error) {
	if err = req.Validate(svc.Validate); err != nil {
		return Award{}, false, err
	}

	if _, err = svc.Students.GetStudent(ctx, req.StudentID); err != nil {
		if errors.Is(err, performance.ErrStudentNotFound) {
			return Award{}, false, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Award{}, false, pkgerrors.Wrap(err, "getting student")
	}
	ex, err := svc.Catalog.GetExercise(ctx, req.ExerciseID)
	if err != nil {
		if errors.Is(err, catalog.ErrExerciseNotFound) {
			return Award{}, false, core.NewValidationError(err, core.FieldError{Field: "exercise_id", Error: err.Error()})
		}
		return Award{}, false, pkgerrors.Wrap(err, "getting exercise")
	}
	if req.ActivityID != nil && *req.ActivityID != ex.ActivityID {
		return Award{}, false, core.NewValidationError(nil, core.FieldError{
			Field: "activity_id",
			Error: "exercise does not belong to this activity",
		})
	}

	var awardedBy *int
	if issuerID > 0 {
		awardedBy = core.IntPtr(issuerID)
	}

	issue := func(exec core.DBExecutor) error {
		pending, err := svc.Repo.QueryAwards(
			ctx, QueryFilter{StudentID: req.StudentID, ExerciseID: req.ExerciseID, Status: StatusPending}, exec,
		)
		if err != nil {
			return pkgerrors.Wrap(err, "querying pending awards")
		}
		if len(pending) > 0 && svc.opts.ReissuePolicy == core.ReissueReject {
			return ErrPendingExists
		}

		code, err := svc.uniqueCode(ctx, req.ExerciseID, exec)
		if err != nil {
			return err
		}
		now := NowFunc().UTC()

		if len(pending) > 0 {
			awd = pending[0]
			awd.Code = code
			awd.PointsAwarded = req.PointsAwarded
			awd.ActivityID = req.ActivityID
			awd.AwardedBy = awardedBy
			awd.IssuedAt = now
			awd, err = svc.Repo.ReissueAward(ctx, awd, exec)
			return pkgerrors.Wrap(err, "reissuing award")
		}

		count, err := svc.Repo.CountAwards(ctx, req.StudentID, req.ExerciseID, exec)
		if err != nil {
			return pkgerrors.Wrap(err, "counting awards")
		}
		awd, err = svc.Repo.CreateAward(ctx, Award{
			StudentID:     req.StudentID,
			ExerciseID:    req.ExerciseID,
			ActivityID:    req.ActivityID,
			PointsAwarded: req.PointsAwarded,
			Code:          code,
			Status:        StatusPending,
			AwardedBy:     awardedBy,
			AttemptNo:     count + 1,
			IssuedAt:      now,
		}, exec)
		created = err == nil
		return pkgerrors.Wrap(err, "creating award")
	}

	// a concurrent first issuance can win the pending index between lookup and insert: reissue it
	for attempt := 0; ; attempt++ {
		created = false
		err = svc.Tx.InTx(ctx, issue)
		if attempt == 0 && errors.Is(err, ErrPendingExists) && svc.opts.ReissuePolicy != core.ReissueReject {
			continue
		}
		break
	}
	if err != nil {
		return Award{}, false, err
	}
	return awd, created, nil
}

// uniqueCode generates a code no other pending award of the exercise holds.
func (svc *Service) uniqueCode(ctx context.Context, exerciseID int, exec core.DBExecutor) (string, error) {
	pending, err := svc.Repo.QueryAwards(ctx, QueryFilter{ExerciseID: exerciseID, Status: StatusPending}, exec)
	if err != nil {
		return "", pkgerrors.Wrap(err, "querying pending codes")
	}
	taken := make(map[string]struct{}, len(pending))
	for _, awd := range pending {
		taken[awd.Code] = struct{}{}
	}

	for i := 0; i < svc.opts.CodeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return "", pkgerrors.Wrap(err, "generating code")
		}
		if _, ok := taken[code]; !ok {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// Redeem completes the student's pending award for the exercise (and activity) of req when its
// code matches, crediting the points and recategorizing the student.
func (svc *Service) Redeem(ctx context.Context, studentID int, req RedeemRequest) (Redemption, error) {
	if err := req.Validate(svc.Validate); err != nil {
		return Redemption{}, err
	}

	var res Redemption
	err := svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		pending, err := svc.Repo.QueryAwards(
			ctx, QueryFilter{StudentID: studentID, ExerciseID: req.ExerciseID, Status: StatusPending}, exec,
		)
		if err != nil {
			return pkgerrors.Wrap(err, "querying pending awards")
		}
		awd, ok := matchPending(pending, req.ExerciseID, req.ActivityID, svc.opts.StrictActivityMatch)
		if !ok {
			return ErrNotFound
		}
		if awd.Code != req.Code {
			return ErrCodeMismatch
		}
		res, err = svc.complete(ctx, awd, exec)
		return err
	})
	if err != nil {
		return Redemption{}, err
	}

	svc.notifyRedeemed(ctx, res)
	return res, nil
}

// RedeemByID completes the award awardID of the student when its code matches.
func (svc *Service) RedeemByID(ctx context.Context, studentID, awardID int, req RedeemByIDRequest) (Redemption, error) {
	if err := req.Validate(svc.Validate); err != nil {
		return Redemption{}, err
	}

	var res Redemption
	err := svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		awd, err := svc.Repo.GetAward(ctx, awardID, exec)
		if err != nil {
			return err
		}
		if awd.StudentID != studentID {
			return ErrNotOwner
		}
		if !awd.Redeemable() {
			return ErrNotFound
		}
		if awd.Code != req.Code {
			return ErrCodeMismatch
		}
		res, err = svc.complete(ctx, awd, exec)
		return err
	})
	if err != nil {
		return Redemption{}, err
	}

	svc.notifyRedeemed(ctx, res)
	return res, nil
}

func (svc *Service) complete(ctx context.Context, awd Award, exec core.DBExecutor) (Redemption, error) {
	completed, err := svc.Repo.CompleteAward(ctx, awd.ID, NowFunc().UTC(), exec)
	if err != nil {
		return Redemption{}, err // ErrNotFound: redeemed concurrently
	}

	perf, err := svc.Students.AddPoints(ctx, awd.StudentID, awd.PointsAwarded, exec)
	if err != nil {
		return Redemption{}, pkgerrors.Wrap(err, "crediting points")
	}
	prev := perf.Category
	perf.Category = performance.Categorize(perf.TotalPoints)
	if perf.Category != prev {
		if perf, err = svc.Students.SetPerformance(ctx, perf, exec); err != nil {
			return Redemption{}, pkgerrors.Wrap(err, "updating category")
		}
	}

	return Redemption{
		Award:            completed,
		PointsCredited:   awd.PointsAwarded,
		TotalPoints:      perf.TotalPoints,
		PreviousCategory: prev,
		Category:         perf.Category,
		Promoted:         perf.Category.Above(prev),
	}, nil
}

type redeemedEmailData struct {
	StudentName      string
	ExerciseTitle    string
	Points           int
	TotalPoints      int
	Category         performance.Category
	PreviousCategory performance.Category
	Promoted         bool
}

// notifyRedeemed publishes the scoreboard event and emails the student. Failures are only logged.
func (svc *Service) notifyRedeemed(ctx context.Context, res Redemption) {
	if svc.Scoreboard == nil && svc.Mailer == nil {
		return
	}
	awd := res.Award

	student, err := svc.Students.GetStudent(ctx, awd.StudentID)
	if err != nil {
		svc.Logger.Error(fmt.Sprintf("notifying redeemed award %d: getting student: %v", awd.ID, err), err)
		return
	}
	ex, err := svc.Catalog.GetExercise(ctx, awd.ExerciseID)
	if err != nil {
		svc.Logger.Error(fmt.Sprintf("notifying redeemed award %d: getting exercise: %v", awd.ID, err), err)
		return
	}

	if svc.Scoreboard != nil {
		activityID := ex.ActivityID
		if awd.ActivityID != nil {
			activityID = *awd.ActivityID
		}
		evt := scoreboard.Event{
			ID:            uuid.NewString(),
			ActivityID:    activityID,
			StudentID:     student.ID,
			StudentName:   student.Name,
			ExerciseID:    ex.ID,
			ExerciseTitle: ex.Title,
			Points:        res.PointsCredited,
			Message:       scoreboard.RedeemedMessage(student.Name, ex.Title, res.PointsCredited),
			CreatedAt:     NowFunc().UTC(),
		}
		if err = svc.Scoreboard.Publish(ctx, evt); err != nil {
			svc.Logger.Error(fmt.Sprintf("publishing scoreboard event: %v", err), err)
		}
	}

	if svc.Mailer != nil && student.Email != "" {
		svc.Mailer.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: student.Name, Address: student.Email}},
			Subject:      fmt.Sprintf("+%d points confirmed", res.PointsCredited),
			TemplateName: "award_redeemed",
			TemplateData: redeemedEmailData{
				StudentName:      student.Name,
				ExerciseTitle:    ex.Title,
				Points:           res.PointsCredited,
				TotalPoints:      res.TotalPoints,
				Category:         res.Category,
				PreviousCategory: res.PreviousCategory,
				Promoted:         res.Promoted,
			},
		})
	}
}

// Recompute resets the student's total to the sum of their COMPLETED awards and recategorizes them.
func (svc *Service) Recompute(ctx context.Context, studentID int) (performance.Performance, error) {
	if _, err := svc.Students.GetStudent(ctx, studentID); err != nil {
		return performance.Performance{}, err
	}

	var perf performance.Performance
	err := svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		total, err := svc.Repo.SumCompletedPoints(ctx, studentID, exec)
		if err != nil {
			return pkgerrors.Wrap(err, "summing completed points")
		}
		perf, err = svc.Students.SetPerformance(ctx, performance.Performance{
			StudentID:   studentID,
			TotalPoints: total,
			Category:    performance.Categorize(total),
			UpdatedAt:   NowFunc().UTC(),
		}, exec)
		return pkgerrors.Wrap(err, "setting performance")
	})
	return perf, err
}

func (svc *Service) Get(ctx context.Context, id int) (Award, error) {
	return svc.Repo.GetAward(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Award, error) {
	return svc.Repo.QueryAwards(ctx, filter)
}

// QueryByStudent lists the awards of a student with pending codes redacted.
func (svc *Service) QueryByStudent(ctx context.Context, studentID int) ([]Award, error) {
	awards, err := svc.Repo.QueryAwards(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	for i := range awards {
		awards[i] = awards[i].Redacted()
	}
	return awards, nil
}
