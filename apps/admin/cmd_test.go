package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/scoreboard"
	"github.com/trezcool/pensamiento/core/user"
	inmemdb "github.com/trezcool/pensamiento/storage/database/inmem"
	"github.com/trezcool/pensamiento/tests"
)

type testCLI struct {
	*commandLine
	usrRepo   user.Repository
	catRepo   catalog.Repository
	awardRepo award.Repository
	out       *bytes.Buffer
}

func setup(t *testing.T) *testCLI {
	t.Helper()
	db := inmemdb.Open()
	validate, translator := testutil.NewValidator()
	out := new(bytes.Buffer)

	tc := &testCLI{
		usrRepo:   inmemdb.NewUserRepository(db),
		catRepo:   inmemdb.NewCatalogRepository(db),
		awardRepo: inmemdb.NewAwardRepository(db),
		out:       out,
	}
	students := inmemdb.NewPerformanceRepository(db)
	catalogSvc := catalog.NewService(tc.catRepo)
	tc.commandLine = &commandLine{
		usrSvc:     user.NewService(tc.usrRepo),
		catalogSvc: catalogSvc,
		awardSvc: award.NewService(award.Deps{
			Tx:       db,
			Repo:     tc.awardRepo,
			Students: students,
			Catalog:  catalogSvc,
			Logger:   new(testutil.Logger),
			Validate: validate,
		}, award.Options{}),
		students:   students,
		validate:   validate,
		translator: translator,
		out:        out,
	}
	return tc
}

// mockPasswords makes the password prompts answer pwds in order.
func mockPasswords(t *testing.T, pwds ...string) {
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwds       []string
	wantErr    error
	wantErrStr string
}

func (tc *testCLI) check(t *testing.T, tt cliTest) {
	t.Helper()
	mockPasswords(t, tt.pwds...)
	err := tc.run(context.Background(), append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.ErrorIs(t, err, tt.wantErr)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	tc := setup(t)
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate without command", args: []string{"migrate"}, wantErr: errHelp},
		{name: "seed without file", args: []string{"seed"}, wantErr: errHelp},
		{name: "scoreboard without activity", args: []string{"scoreboard"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"recompute", "-lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.check(t, tt)
		})
	}
	assert.Contains(t, tc.out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	tc := setup(t)

	t.Run("memory engine", func(t *testing.T) {
		tc.check(t, cliTest{args: []string{"migrate", "up"}, wantErr: errNoSQLDatabase})
	})

	tc.db = new(sql.DB)
	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "leaderboard", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.check(t, tt)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	tc := setup(t)
	const pwd = "Tr1cky!pwd"

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "ana@test.com", "-name", "Ana"}, wantErr: errHelp},
		{
			name: "student without group", args: []string{"adduser", "-email", "ana@test.com", "-name", "Ana"},
			pwds: []string{pwd, pwd}, wantErrStr: "invalid input:\n  group: students must belong to a group",
		},
		{
			name: "passwords differ", args: []string{"adduser", "-email", "ana@test.com", "-name", "Ana", "-group", "A1"},
			pwds: []string{pwd, pwd + "x"}, wantErrStr: "invalid input:\n  password_confirm: password_confirm must be equal to Password",
		},
		{
			name: "unknown role", args: []string{"adduser", "-email", "ana@test.com", "-name", "Ana", "-role", "dean"},
			pwds: []string{pwd, pwd}, wantErrStr: "invalid input:\n  role: role must be one of student, professor or admin",
		},
		{name: "student", args: []string{"adduser", "-email", "Ana@Test.com", "-name", "Ana", "-group", "A1"}, pwds: []string{pwd, pwd}},
		{name: "professor", args: []string{"adduser", "-email", "pro@test.com", "-name", "Pro", "-role", "professor"}, pwds: []string{pwd, pwd}},
		{
			name: "duplicate", args: []string{"adduser", "-email", "ana@test.com", "-name", "Ana 2", "-group", "A1"},
			pwds: []string{pwd, pwd}, wantErrStr: "invalid input:\n  email: " + user.ErrEmailExists.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.check(t, tt)
		})
	}

	ana, err := tc.usrRepo.GetUserByEmail(context.Background(), "ana@test.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, ana.Role)
	assert.Equal(t, "A1", ana.Group)
	assert.True(t, ana.IsActive)
	assert.NoError(t, ana.CheckPassword(pwd))

	pro, err := tc.usrRepo.GetUserByEmail(context.Background(), "pro@test.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleProfessor, pro.Role)
}

func Test_commandLine_resetPassword(t *testing.T) {
	tc := setup(t)
	usr := testutil.CreateUser(t, tc.usrRepo, "Awe", "awe@test.cd", "", user.RoleProfessor, "Old!pass1")

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", usr.Email}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwds: []string{"N3w!pass"}, wantErr: user.ErrNotFound},
		{
			name: "weak password", args: []string{"resetpassword", "-email", usr.Email}, pwds: []string{"12345678"},
			wantErrStr: "password cannot be entirely numeric",
		},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, pwds: []string{"N3w!pass"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.check(t, tt)
		})
	}

	refreshed, err := tc.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("N3w!pass"))
}

const seedTOML = `
[[activities]]
group = "A1"
title = "Loops"
status = "ACTIVE"
start_time = 2026-03-02T09:00:00Z
end_time = 2026-03-02T11:00:00Z

  [[activities.exercises]]
  title = "FizzBuzz"
  max_points = 50

  [[activities.exercises]]
  title = "Primes"
  difficulty = 4
  max_points = 80

[[activities]]
group = "B2"
title = "Recursion"
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_commandLine_seed(t *testing.T) {
	tc := setup(t)
	ctx := context.Background()

	t.Run("invalid exercise", func(t *testing.T) {
		path := writeSeedFile(t, "[[activities]]\ngroup = \"A1\"\ntitle = \"Loops\"\n[[activities.exercises]]\ntitle = \"Big\"\nmax_points = 500\n")
		tc.check(t, cliTest{
			args:       []string{"seed", "-file", path},
			wantErrStr: "activity #1, exercise #1: invalid input:\n  max_points: max_points must be 100 or less",
		})
		acts, err := tc.catRepo.QueryActivities(ctx, catalog.ActivityFilter{})
		require.NoError(t, err)
		assert.Empty(t, acts, "nothing is created when the file is invalid")
	})

	t.Run("unknown field", func(t *testing.T) {
		path := writeSeedFile(t, "[[activities]]\ngroup = \"A1\"\ntitle = \"Loops\"\nroom = 4\n")
		err := tc.run(ctx, []string{"admin", "seed", "-file", path})
		assert.Error(t, err)
	})

	t.Run("seeded", func(t *testing.T) {
		tc.check(t, cliTest{args: []string{"seed", "-file", writeSeedFile(t, seedTOML)}})
		assert.Contains(t, tc.out.String(), "seeded 2 activities and 2 exercises")

		acts, err := tc.catRepo.QueryActivities(ctx, catalog.ActivityFilter{})
		require.NoError(t, err)
		require.Len(t, acts, 2)
		assert.Equal(t, catalog.ActivityActive, acts[0].Status)
		require.NotNil(t, acts[0].StartTime)
		assert.True(t, acts[0].StartTime.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
		assert.Nil(t, acts[0].ProfessorID)
		assert.Equal(t, catalog.ActivityScheduled, acts[1].Status)

		exs, err := tc.catRepo.QueryExercises(ctx, acts[0].ID)
		require.NoError(t, err)
		require.Len(t, exs, 2)
		assert.Equal(t, "Primes", exs[1].Title)
		assert.Equal(t, 4, exs[1].Difficulty)
		assert.Equal(t, 80, exs[1].MaxPoints)
	})
}

func Test_commandLine_recompute(t *testing.T) {
	tc := setup(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, tc.usrRepo, "Alice", "alice@test.com", "A1", user.RoleStudent, "")
	bob := testutil.CreateUser(t, tc.usrRepo, "Bob", "bob@test.com", "A1", user.RoleStudent, "")
	_, ex := testutil.CreateExercise(t, tc.catRepo, "A1", "Loops", nil)

	for _, points := range []int{200, 60} {
		awd, err := tc.awardRepo.CreateAward(ctx, award.Award{
			StudentID: alice.ID, ExerciseID: ex.ID, PointsAwarded: points, Code: "ABC123",
			Status: award.StatusPending, AttemptNo: 1, IssuedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		_, err = tc.awardRepo.CompleteAward(ctx, awd.ID, time.Now().UTC())
		require.NoError(t, err)
	}

	tests := []cliTest{
		{name: "unknown student", args: []string{"recompute", "-student", "999"}, wantErr: performance.ErrStudentNotFound},
		{name: "one student", args: []string{"recompute", "-student", strconv.Itoa(alice.ID)}},
		{name: "everyone", args: []string{"recompute"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc.check(t, tt)
		})
	}

	assert.Contains(t, tc.out.String(), fmt.Sprintf("student %d: 260 points (killer)", alice.ID))
	assert.Contains(t, tc.out.String(), fmt.Sprintf("student %d: 0 points (principiante)", bob.ID))
}

func Test_commandLine_scoreboard(t *testing.T) {
	tc := setup(t)
	act, _ := testutil.CreateExercise(t, tc.catRepo, "A1", "Loops", nil)
	args := []string{"scoreboard", "-activity", strconv.Itoa(act.ID)}

	t.Run("without redis", func(t *testing.T) {
		tc.check(t, cliTest{args: args, wantErr: errNoLiveScoreboard})
	})

	tc.watch = func(_ context.Context, activityID int) (<-chan scoreboard.Event, error) {
		events := make(chan scoreboard.Event, 1)
		events <- scoreboard.Event{
			ActivityID: activityID,
			Message:    scoreboard.RedeemedMessage("Alice", "FizzBuzz", 30),
			CreatedAt:  time.Now(),
		}
		close(events)
		return events, nil
	}

	t.Run("unknown activity", func(t *testing.T) {
		tc.check(t, cliTest{args: []string{"scoreboard", "-activity", "999"}, wantErr: catalog.ErrActivityNotFound})
	})
	t.Run("follow", func(t *testing.T) {
		tc.check(t, cliTest{args: args})
		assert.Contains(t, tc.out.String(), `Alice completed "FizzBuzz" (+30 points)`)
	})
}
