package main

import (
	"log"
	"os"

	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
	"github.com/learnmate/learnmate/core/school"
	"github.com/learnmate/learnmate/core/user"
	emailsvc "github.com/learnmate/learnmate/services/email"
	identitysvc "github.com/learnmate/learnmate/services/identity"
	"github.com/learnmate/learnmate/storage/database"
	sqlxrepos "github.com/learnmate/learnmate/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)

	store := sqlxrepos.NewStore(db)
	sessions := auth.NewTableSessionStore(store, conf.Auth.SessionTTL)
	users := user.NewService(store, identitysvc.NewLocalProvider(store), sessions, emailsvc.NewConsoleService(conf), conf)

	// start CLI
	cli := commandLine{
		db:       db,
		users:    users,
		schools:  school.NewService(store, users),
		sessions: sessions,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %+v\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
