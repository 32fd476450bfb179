package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/pensamiento/apps/api/echo"
	"github.com/trezcool/pensamiento/core"
	"github.com/trezcool/pensamiento/core/award"
	"github.com/trezcool/pensamiento/core/catalog"
	"github.com/trezcool/pensamiento/core/performance"
	"github.com/trezcool/pensamiento/core/user"
	scoreboardsvc "github.com/trezcool/pensamiento/services/scoreboard"
	inmemdb "github.com/trezcool/pensamiento/storage/database/inmem"
	"github.com/trezcool/pensamiento/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	conf      *core.Config
	server    *echoapi.Server
	db        *inmemdb.DB
	usrRepo   user.Repository
	catRepo   catalog.Repository
	awardRepo award.Repository
	perfRepo  performance.Repository
	board     *scoreboardsvc.MemoryPublisher
}

func setup(t *testing.T, opts ...func(conf *core.Config)) *testApp {
	t.Helper()
	conf := core.NewTestConfig()
	for _, opt := range opts {
		opt(conf)
	}

	db := inmemdb.Open()
	app := &testApp{
		conf:      conf,
		db:        db,
		usrRepo:   inmemdb.NewUserRepository(db),
		catRepo:   inmemdb.NewCatalogRepository(db),
		awardRepo: inmemdb.NewAwardRepository(db),
		perfRepo:  inmemdb.NewPerformanceRepository(db),
		board:     scoreboardsvc.NewMemoryPublisher(conf.Scoreboard.Size),
	}

	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidator()
	catalogSvc := catalog.NewService(app.catRepo)
	awardSvc := award.NewService(
		award.Deps{
			Tx:         db,
			Repo:       app.awardRepo,
			Students:   app.perfRepo,
			Catalog:    catalogSvc,
			Scoreboard: app.board,
			Logger:     logger,
			Validate:   validate,
		},
		award.Options{
			ReissuePolicy:       conf.Awards.ReissuePolicy,
			StrictActivityMatch: conf.Awards.StrictActivityMatch,
			CodeAttempts:        conf.Awards.CodeAttempts,
		},
	)

	app.server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        user.NewService(app.usrRepo),
		CatalogSvc:     catalogSvc,
		AwardSvc:       awardSvc,
		PerformanceSvc: performance.NewService(app.perfRepo, conf.Leaderboard.Size),
		Scoreboard:     app.board,
		Validate:       validate,
		Translator:     translator,
	})
	return app
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.NewToken(app.conf, usr)
	require.NoError(t, err, "NewToken()")
	return token
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
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
}

func newAuthRequest(method, path, token string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marchallObj()")
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	require.NoError(t, err, "marchallList()")
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body = %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	require.NoError(t, err, "jsonBytesEqual()")
	assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), string(tt.wantData))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "decoding %s", rec.Body.String())
}
