package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"go.uber.org/dig"

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
)

type (
	// ServerParams holds everything the HTTP server depends on.
	ServerParams struct {
		dig.In

		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Resolver   *auth.Resolver

		UserSvc       *user.Service
		SchoolSvc     *school.Service
		ClassSvc      *class.Service
		AttendanceSvc *attendance.Service
		AssignmentSvc *assignment.Service
		SubmissionSvc *submission.Service
		GradeSvc      *grade.Service
		ActivitySvc   *activity.Service
		AnalyticsSvc  *analytics.Service
	}

	Server struct {
		params   ServerParams
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}

	// base is shared by every API group.
	base struct {
		validate *validator.Validate
		activity *activity.Service
	}
)

func NewServer(params ServerParams) *Server {
	s := &Server{
		params:   params,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.params.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.params.Logger, s.params.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home(conf.AppName))

	v1 := s.app.Group("/v1")
	authed := authMiddleware(s.params.Resolver)
	b := base{validate: s.params.Validate, activity: s.params.ActivitySvc}

	registerAuthAPI(v1, authed, b, s.params.UserSvc)
	registerProfileAPI(v1, authed, b, s.params.UserSvc)
	registerSchoolAPI(v1, authed, b, s.params.SchoolSvc)
	registerClassAPI(v1, authed, b, s.params.ClassSvc)
	registerAttendanceAPI(v1, authed, b, s.params.AttendanceSvc)
	registerAssignmentAPI(v1, authed, b, s.params.AssignmentSvc)
	registerSubmissionAPI(v1, authed, b, s.params.SubmissionSvc)
	registerGradeAPI(v1, authed, b, s.params.GradeSvc)
	registerAdminAPI(v1, authed, b, s.params.UserSvc, s.params.AnalyticsSvc)
	registerSuperuserAPI(v1, authed, b, s.params.SchoolSvc, s.params.AnalyticsSvc)
}

// Start blocks until the server stops. Failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.params.Conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(appName string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+appName+" API!")
	}
}

// record logs a mutation on behalf of the context user. Never fails the request.
func (b base) record(ctx echo.Context, action, resourceType, resourceID string) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return
	}
	b.activity.Record(ctx.Request().Context(), usr, action, resourceType, resourceID)
}

type MessageResponse struct {
	Message string `json:"message"`
}
