package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/learnmate/learnmate/apps/api/echo"
	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/activity"
	"github.com/learnmate/learnmate/core/analytics"
	"github.com/learnmate/learnmate/core/assignment"
	"github.com/learnmate/learnmate/core/attendance"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/class"
	"github.com/learnmate/learnmate/core/grade"
	"github.com/learnmate/learnmate/core/school"
	"github.com/learnmate/learnmate/core/submission"
	"github.com/learnmate/learnmate/core/user"
	emailsvc "github.com/learnmate/learnmate/services/email"
	identitysvc "github.com/learnmate/learnmate/services/identity"
	logsvc "github.com/learnmate/learnmate/services/logger"
	"github.com/learnmate/learnmate/storage/database"
	sqlxrepos "github.com/learnmate/learnmate/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newStore(db *sqlx.DB) core.TableStore {
	return sqlxrepos.NewStore(db)
}

// newSessionStore keeps sessions in process memory unless auth.sessionBackend is "table".
func newSessionStore(conf *core.Config, store core.TableStore) auth.SessionStore {
	if conf.Auth.SessionBackend == "table" {
		return auth.NewTableSessionStore(store, conf.Auth.SessionTTL)
	}
	return auth.NewMemorySessionStore(conf.Auth.SessionTTL)
}

func newIdentityProvider(store core.TableStore) user.IdentityProvider {
	return identitysvc.NewLocalProvider(store)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	return core.NewTranslator()
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newStore))
	must(c.Provide(newSessionStore))
	must(c.Provide(newIdentityProvider))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(auth.NewResolver))
	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(assignment.NewService))
	must(c.Provide(submission.NewService))
	must(c.Provide(grade.NewService))
	must(c.Provide(activity.NewService))
	must(c.Provide(analytics.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
