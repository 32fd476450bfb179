// Package logsvc implements core.Logger. Every record goes to the standard logger and, when enabled,
// to Rollbar.
package logsvc

import (
	"fmt"
	"log"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare splits args into the rollbar arguments and the authenticated user, if any.
// expected fmt: msg | error, map[string]interface{}, user.User
func prepare(msg string, args []interface{}) (rbArgs []interface{}, person *user.User) {
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if person == nil { // only set one User
				usr := a
				person = &usr
			}
		case *user.User:
			if person == nil && a != nil {
				person = a
			}
		default:
			rbArgs = append(rbArgs, arg)
		}
	}
	return rbArgs, person
}

func (l RollbarLogger) report(level, msg string, args []interface{}) {
	rbArgs, person := prepare(msg, args)
	if person != nil {
		rollbar.SetPerson(strconv.Itoa(person.ID), person.Name, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, rbArgs...)
	l.print(level, msg, rbArgs[1:])
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s", level, msg)
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			l.std.Printf("%+v", err)
			continue
		}
		l.std.Println(fmt.Sprintf("%+v", arg))
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
