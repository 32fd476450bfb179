// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/user"
)

// NewValidator returns a validator with every custom validator and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records the log entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { panic(fmt.Sprintf("fatal: %s", msg)) }

func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var entries []LogEntry
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			entries = append(entries, e)
		}
	}
	return entries
}

// CreateUser creates an active user directly through repo.
func CreateUser(t *testing.T, repo user.Repository, name, email, group string, role user.Role, pwd string) user.User {
	t.Helper()
	now := user.NowFunc().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Group:     group,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd), "SetPassword()")
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "CreateUser()")
	return usr
}

// CreateExercise creates an activity of group with one exercise.
func CreateExercise(t *testing.T, repo catalog.Repository, group, title string, professorID *int) (catalog.Activity, catalog.Exercise) {
	t.Helper()
	ctx := context.Background()
	act, err := repo.CreateActivity(ctx, catalog.Activity{
		Group:       group,
		ProfessorID: professorID,
		Title:       title,
		Status:      catalog.ActivityActive,
		CreatedAt:   catalog.NowFunc().UTC(),
	})
	require.NoError(t, err, "CreateActivity()")
	ex, err := repo.CreateExercise(ctx, catalog.Exercise{
		ActivityID: act.ID,
		Title:      title + " exercise",
		MaxPoints:  100,
		CreatedAt:  catalog.NowFunc().UTC(),
	})
	require.NoError(t, err, "CreateExercise()")
	return act, ex
}
