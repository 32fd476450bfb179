package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/user"
	"github.com/trezcool/pensamiento/tests"
)

func TestDB_InTx(t *testing.T) {
	db := Open()
	ctx := context.Background()
	awards := NewAwardRepository(db)
	perfs := NewPerformanceRepository(db)
	alice := testutil.CreateUser(t, NewUserRepository(db), "Alice", "alice@test.com", "A1", user.RoleStudent, "")
	_, ex := testutil.CreateExercise(t, NewCatalogRepository(db), "A1", "Loops", nil)

	pending := award.Award{
		StudentID: alice.ID, ExerciseID: ex.ID, PointsAwarded: 10, Code: "ABC123",
		Status: award.StatusPending, AttemptNo: 1, IssuedAt: time.Now().UTC(),
	}

	t.Run("rollback", func(t *testing.T) {
		errBoom := errors.New("boom")
		err := db.InTx(ctx, func(exec core.DBExecutor) error {
			awd, err := awards.CreateAward(ctx, pending, exec)
			require.NoError(t, err)
			_, err = awards.CompleteAward(ctx, awd.ID, time.Now().UTC(), exec)
			require.NoError(t, err)
			_, err = perfs.AddPoints(ctx, alice.ID, 10, exec)
			require.NoError(t, err)
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		count, err := awards.CountAwards(ctx, alice.ID, ex.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
		perf, err := perfs.GetPerformance(ctx, alice.ID)
		require.NoError(t, err)
		assert.Zero(t, perf.TotalPoints)
	})

	t.Run("commit", func(t *testing.T) {
		err := db.InTx(ctx, func(exec core.DBExecutor) error {
			_, err := awards.CreateAward(ctx, pending, exec)
			return err
		})
		require.NoError(t, err)

		_, err = awards.CreateAward(ctx, pending)
		assert.ErrorIs(t, err, award.ErrPendingExists)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		called := false
		err := db.InTx(cctx, func(core.DBExecutor) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("reset", func(t *testing.T) {
		db.Reset()
		_, err := NewUserRepository(db).GetUserByID(ctx, alice.ID)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}
