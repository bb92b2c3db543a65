package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/learnmate/learnmate/apps/api/echo"
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
	inmemdb "github.com/learnmate/learnmate/storage/database/inmem"
)

var (
	errNotAuthenticated = httpErr{Error: "not authenticated"}
	errForbidden        = httpErr{Error: "permission denied"}
)

// flakyStore fails every call with an upstream error while down is set.
type flakyStore struct {
	core.TableStore
	down atomic.Bool
}

func (s *flakyStore) err(op string) error {
	return core.NewUpstreamError(op, context.DeadlineExceeded)
}

func (s *flakyStore) Select(ctx context.Context, table string, filter core.Filter, opts ...core.QueryOption) ([]core.Record, error) {
	if s.down.Load() {
		return nil, s.err("select " + table)
	}
	return s.TableStore.Select(ctx, table, filter, opts...)
}

type testApp struct {
	server   *Server
	store    *inmemdb.Store
	flaky    *flakyStore
	sessions *auth.MemorySessionStore
	conf     *core.Config
}

func setup(t *testing.T, confOpts ...func(*core.Config)) testApp {
	t.Helper()
	conf := core.NewTestConfig()
	for _, opt := range confOpts {
		opt(conf)
	}

	store := inmemdb.NewStore()
	flaky := &flakyStore{TableStore: store}
	sessions := auth.NewMemorySessionStore(conf.Auth.SessionTTL)
	emailsvc.ResetSentMessages()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	usrSvc := user.NewService(flaky, identitysvc.NewLocalProvider(flaky), sessions, emailsvc.NewConsoleServiceMock(conf), conf)
	schoolSvc := school.NewService(flaky, usrSvc)
	classSvc := class.NewService(flaky, usrSvc)
	assignmentSvc := assignment.NewService(flaky, classSvc)
	submissionSvc := submission.NewService(flaky, classSvc, assignmentSvc)

	server := NewServer(ServerParams{
		Conf:          conf,
		Logger:        core.NopLogger{},
		Validate:      validate,
		Translator:    translator,
		Resolver:      auth.NewResolver(flaky, sessions, conf),
		UserSvc:       usrSvc,
		SchoolSvc:     schoolSvc,
		ClassSvc:      classSvc,
		AttendanceSvc: attendance.NewService(flaky, classSvc),
		AssignmentSvc: assignmentSvc,
		SubmissionSvc: submissionSvc,
		GradeSvc:      grade.NewService(flaky, assignmentSvc, submissionSvc),
		ActivitySvc:   activity.NewService(flaky, core.NopLogger{}),
		AnalyticsSvc:  analytics.NewService(flaky, schoolSvc),
	})
	return testApp{server: server, store: store, flaky: flaky, sessions: sessions, conf: conf}
}

func (app testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = make([]interface{}, 0)
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData compares the body only when wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, app.do(req, rec))
		})
	}
}
