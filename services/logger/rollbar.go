package logsvc

import (
	"log"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// RollbarLogger sends entries to Rollbar and writes them to a std logger too.
// Entries are tagged with the std logger's prefix ("API", "DB", "ADMIN") as their component,
// so reports from the API and the admin CLI can be told apart.
type RollbarLogger struct {
	std       *log.Logger
	component string
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{
		std:       std,
		component: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(std.Prefix()), ":")),
	}
}

// Enable toggles reporting. Without a token nothing is sent.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && rollbar.Token() != "")
}

func (l RollbarLogger) Close() {
	rollbar.Close()
}

// personOf picks the acting user out of a log argument.
func personOf(arg interface{}) (user.User, bool) {
	switch usr := arg.(type) {
	case user.User:
		return usr, true
	case *user.User:
		if usr != nil {
			return *usr, true
		}
	}
	return user.User{}, false
}

// prepare turns log args into rollbar args: msg first, then errors and extras.
// The first user found becomes the rollbar person; other users are dropped.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	out := []interface{}{msg}
	var extras map[string]interface{}
	var person *user.User

	for _, arg := range args {
		if usr, ok := personOf(arg); ok {
			if person == nil {
				person = &usr
			}
			continue
		}
		if m, ok := arg.(map[string]interface{}); ok && extras == nil {
			extras = make(map[string]interface{}, len(m)+1)
			for k, v := range m {
				extras[k] = v
			}
			continue
		}
		out = append(out, arg)
	}

	if person != nil {
		rollbar.SetPerson(person.ID, person.Name, person.Email)
	} else {
		rollbar.ClearPerson()
	}

	if l.component != "" {
		if extras == nil {
			extras = make(map[string]interface{}, 1)
		}
		extras["component"] = l.component
	}
	if extras != nil {
		out = append(out, extras)
	}
	return out
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	rollbar.Log(level, l.prepare(msg, args)...)

	l.std.Println(msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

// Fatal reports as critical, waits for pending reports, then exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
