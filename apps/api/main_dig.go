package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof handlers

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/learnmate/learnmate/apps/api/di/dig"
	echoapi "github.com/learnmate/learnmate/apps/api/echo"
	"github.com/learnmate/learnmate/core"
	"github.com/learnmate/learnmate/core/auth"
)

// sweptSessions is published under /debug/vars.
var sweptSessions = expvar.NewInt("sessions_swept")

// countingSessions counts the sessions removed by the sweeper.
type countingSessions struct {
	auth.SessionStore
}

func (s countingSessions) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.SessionStore.SweepExpired(ctx)
	sweptSessions.Add(int64(n))
	return n, err
}

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		sessions auth.SessionStore,
		validate *validator.Validate,
		translator ut.Translator,
		server *echoapi.Server,
	) {
		apiLogger.Info(fmt.Sprintf("LearnMate starting : build %q, env %s, %s sessions (ttl %s)",
			conf.Build, conf.Env, conf.Auth.SessionBackend, conf.Auth.SessionTTL))
		core.InitValidators(validate, translator)

		defer func() {
			if err := db.Close(); err != nil {
				dbLoggerParam.Logger.Fatal("closing database", err)
			}
		}()
		defer apiLogger.Info("LearnMate stopped")

		sweepCtx, stopSweeper := context.WithCancel(context.Background())
		defer stopSweeper()
		go auth.RunSweeper(sweepCtx, countingSessions{sessions}, conf.Auth.SessionSweepInterval, apiLogger)

		serveDebug(conf, apiLogger)
		go server.Start()

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: shutting down", sig))
			stopSweeper()
			shutdown(server, conf, apiLogger)
		}
	}))
}

// serveDebug exposes /debug/pprof and /debug/vars on the debug host.
func serveDebug(conf *core.Config, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("session_backend").Set(conf.Auth.SessionBackend)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// shutdown gives in-flight requests until the shutdown timeout, then forces the server closed.
func shutdown(server *echoapi.Server, conf *core.Config, logger core.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error(fmt.Sprintf("graceful shutdown failed: %v", err), err)
		if err = server.Close(); err != nil {
			logger.Fatal(fmt.Sprintf("forcing shutdown: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
