package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
)

// RollbarLogger writes to a standard logger and reports to Rollbar.
// The caller, when passed as an auth.User argument, becomes the Rollbar person
// and their role and school are attached as custom data.
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
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// caller returns the first auth.User of args and the remaining args.
func caller(args []interface{}) (auth.User, bool, []interface{}) {
	var usr auth.User
	var found bool
	rest := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if u, ok := arg.(auth.User); ok {
			if !found {
				usr, found = u, true
			}
			continue
		}
		rest = append(rest, arg)
	}
	return usr, found, rest
}

func callerData(usr auth.User) map[string]interface{} {
	data := map[string]interface{}{"role": usr.Role.String()}
	if usr.SchoolID.Valid {
		data["school_id"] = usr.SchoolID.String
	}
	return data
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	usr, found, rest := caller(args)

	report := append([]interface{}{msg}, rest...)
	if found {
		rollbar.SetPerson(usr.ID, usr.FullName, usr.Email)
		report = append(report, callerData(usr))
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, report...)

	if found {
		l.std.Printf("%s [user=%s role=%s]", msg, usr.ID, usr.Role)
	} else {
		l.std.Println(msg)
	}
	for _, arg := range rest {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
