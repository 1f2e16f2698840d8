package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/readmegen/internal/db"
	"github.com/suPer8Hu/readmegen/internal/generation"
	"github.com/suPer8Hu/readmegen/internal/httpapi/middleware"
)

type nopDispatcher struct{ ids []string }

func (d *nopDispatcher) Dispatch(_ context.Context, id string) error {
	d.ids = append(d.ids, id)
	return nil
}

type staticHealth struct{ err error }

func (h staticHealth) Health(context.Context) error { return h.err }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	router *gin.Engine
	repo   *generation.Repo
	disp   *nopDispatcher
}

func newFixture(t *testing.T, secret string, health error) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	repo := generation.NewRepo(gdb)
	require.NoError(t, repo.AutoMigrate())

	disp := &nopDispatcher{}
	svc := generation.NewService(repo, disp, staticHealth{err: health}, nil)
	return &fixture{router: NewRouter(svc, secret, nil), repo: repo, disp: disp}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (f *fixture) seed(t *testing.T, id string, status generation.JobStatus, result string) {
	t.Helper()
	job := &generation.Job{ID: id, TargetReference: "https://github.com/acme/sample", Status: status}
	if result != "" {
		job.Result = &result
	}
	require.NoError(t, f.repo.CreateJob(context.Background(), job))
}

func TestGenerateAndGet(t *testing.T) {
	f := newFixture(t, "", nil)

	w, env := f.do(t, http.MethodPost, "/api/generate", `{"repo_url":"https://github.com/acme/sample"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	var created struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, []string{created.JobID}, f.disp.ids)

	w, env = f.do(t, http.MethodGet, "/api/jobs/"+created.JobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"pending"`)
	assert.Contains(t, string(env.Data), `"result":null`)
}

func TestGenerate_BadRequests(t *testing.T) {
	f := newFixture(t, "", nil)

	w, _ := f.do(t, http.MethodPost, "/api/generate", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := f.do(t, http.MethodPost, "/api/generate", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 10002, env.Code)
	assert.Empty(t, f.disp.ids)
}

func TestJobErrorsMapToStatus(t *testing.T) {
	f := newFixture(t, "", nil)
	f.seed(t, "01J00000000000000000000001", generation.StatusCompleted, "# Done")
	f.seed(t, "01J00000000000000000000002", generation.StatusFailed, "fetch failed")
	f.seed(t, "01J00000000000000000000003", generation.StatusPending, "")

	w, _ := f.do(t, http.MethodGet, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/jobs/01J00000000000000000000001/retry", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/jobs/01J00000000000000000000002/retry", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"01J00000000000000000000002"}, f.disp.ids)

	w, _ = f.do(t, http.MethodGet, "/api/jobs/01J00000000000000000000003/download", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/jobs?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodDelete, "/api/jobs/01J00000000000000000000003", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, http.MethodGet, "/api/jobs/01J00000000000000000000003", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListJobs(t *testing.T) {
	f := newFixture(t, "", nil)
	f.seed(t, "01J00000000000000000000001", generation.StatusCompleted, "# Done")
	f.seed(t, "01J00000000000000000000002", generation.StatusFailed, "boom")

	w, env := f.do(t, http.MethodGet, "/api/jobs?status=failed", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Jobs []struct {
			JobID string `json:"job_id"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Jobs, 1)
	assert.Equal(t, "01J00000000000000000000002", data.Jobs[0].JobID)
}

func TestDownloadAndPreview(t *testing.T) {
	f := newFixture(t, "", nil)
	f.seed(t, "01J00000000000000000000001", generation.StatusCompleted, "# Done\n\nBody")

	w, _ := f.do(t, http.MethodGet, "/api/jobs/01J00000000000000000000001/download", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="README.md"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "# Done\n\nBody", w.Body.String())

	w, _ = f.do(t, http.MethodGet, "/api/jobs/01J00000000000000000000001/preview", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1")
	assert.Contains(t, w.Body.String(), "<p>Body</p>")
}

func TestBackendHealth(t *testing.T) {
	w, _ := newFixture(t, "", nil).do(t, http.MethodGet, "/api/health/llm", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := newFixture(t, "", errors.New("401")).do(t, http.MethodGet, "/api/health/llm", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 50301, env.Code)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	f := newFixture(t, "s3cret", nil)

	w, _ := f.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "liveness stays open")

	w, _ = f.do(t, http.MethodGet, "/api/jobs", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/jobs", "", "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := middleware.SignToken("s3cret", "ci", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	w, _ = f.do(t, http.MethodGet, "/api/jobs", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	expired, err := middleware.SignToken("s3cret", "ci", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	require.NoError(t, err)
	w, _ = f.do(t, http.MethodGet, "/api/jobs", "", "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	w, _ := newFixture(t, "", nil).do(t, http.MethodGet, "/api/health", "", middleware.RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}
