package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/studio/internal/buckets"
	"github.com/willibrandon/studio/internal/db"
	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
	"github.com/willibrandon/studio/internal/testutil"
)

const testConn = "postgres://postgres@localhost:5432/postgres"

type fakeBackend struct {
	exec      sqlexec.Executor
	cache     *querycache.Cache
	threshold int64
}

func (b *fakeBackend) Project(ref string) (privileges.ProjectVars, error) {
	if ref != "default" {
		return privileges.ProjectVars{}, fmt.Errorf("%w: %s", db.ErrUnknownProject, ref)
	}
	return privileges.ProjectVars{ProjectRef: ref, ConnectionString: testConn}, nil
}

func (b *fakeBackend) Buckets(project privileges.ProjectVars) *buckets.LargestSizeLimitsQuery {
	return buckets.NewLargestSizeLimitsQuery(b.exec, b.cache, buckets.ConnectionVars{
		ProjectRef:       project.ProjectRef,
		ConnectionString: project.ConnectionString,
	}, b.threshold)
}

// database answers the snapshot, estimate and bucket queries by key.
type database struct {
	estimate  any
	bucketErr error
}

func (d *database) execute(_ context.Context, req sqlexec.Request) (sqlexec.Result, error) {
	switch {
	case req.QueryKey.Equal(querykey.TablePrivileges(req.ProjectRef)):
		return sqlexec.Result{Rows: []sqlexec.Row{
			{
				"relation_id": int64(16384),
				"schema":      "public",
				"name":        "todos",
				"privileges": []any{
					map[string]any{"grantor": "postgres", "grantee": "anon", "privilege_type": "SELECT", "is_grantable": false},
					map[string]any{"grantor": "postgres", "grantee": "authenticated", "privilege_type": "INSERT", "is_grantable": false},
				},
			},
			{"relation_id": int64(16390), "schema": "private", "name": "secrets", "privileges": []any{}},
		}}, nil
	case req.QueryKey.Equal(querykey.BucketLiveTupleEstimate):
		return sqlexec.Result{Rows: []sqlexec.Row{{"live_tuple_estimate": d.estimate}}}, nil
	case req.QueryKey.Equal(querykey.BucketsLargestSizeLimit):
		if d.bucketErr != nil {
			return sqlexec.Result{}, d.bucketErr
		}
		return sqlexec.Result{Rows: []sqlexec.Row{
			{"id": "avatars", "name": "avatars", "file_size_limit": int64(1 << 20)},
			{"id": "videos", "name": "videos", "file_size_limit": int64(50 << 20)},
			{"id": "docs", "name": "docs", "file_size_limit": nil},
		}}, nil
	}
	return sqlexec.Result{Rows: []sqlexec.Row{}}, nil
}

func newTestServer(t *testing.T, d *database) (*httptest.Server, *testutil.FakeExecutor) {
	t.Helper()
	exec := &testutil.FakeExecutor{ExecuteFn: d.execute}
	cache := querycache.New()
	reader := privileges.NewReader(exec, cache)
	h := NewHandlers(
		&fakeBackend{exec: exec, cache: cache, threshold: 1000},
		privileges.NewService(reader, cache),
		privileges.NewMutator(exec, cache, nil),
	)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, exec
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGetTableAPIAccess(t *testing.T) {
	srv, _ := newTestServer(t, &database{})

	tests := []struct {
		name      string
		query     string
		hasAccess bool
		roles     []string
	}{
		{"by relation id", "relation_id=16384", true, []string{"anon", "authenticated"}},
		{"by name", "schema=public&table=todos", true, []string{"anon", "authenticated"}},
		{"no api grants", "relation_id=16390", false, []string{}},
		{"unknown relation", "schema=public&table=missing", false, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/projects/default/tables/api-access?" + tt.query)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body := decode[struct {
				HasAPIAccess    bool     `json:"has_api_access"`
				RolesWithAccess []string `json:"roles_with_access"`
			}](t, resp)
			assert.Equal(t, tt.hasAccess, body.HasAPIAccess)
			assert.ElementsMatch(t, tt.roles, body.RolesWithAccess)
		})
	}
}

func TestGetTableAPIAccess_Errors(t *testing.T) {
	srv, exec := newTestServer(t, &database{})

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"missing target", "/projects/default/tables/api-access", http.StatusBadRequest, CodeBadRequest},
		{"schema without table", "/projects/default/tables/api-access?schema=public", http.StatusBadRequest, CodeBadRequest},
		{"bad relation id", "/projects/default/tables/api-access?relation_id=abc", http.StatusBadRequest, CodeBadRequest},
		{"unknown project", "/projects/nope/tables/api-access?relation_id=1", http.StatusNotFound, CodeUnknownProject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, resp).Code)
		})
	}
	assert.Zero(t, exec.Calls(), "rejected reads must not reach the database")
}

func TestSetTableAPIAccess(t *testing.T) {
	srv, exec := newTestServer(t, &database{})

	resp, err := http.Post(srv.URL+"/projects/default/tables/16384/api-access", "application/json",
		strings.NewReader(`{"enabled": false}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[SetAPIAccessResponse](t, resp)
	assert.Equal(t, uint32(16384), body.RelationID)
	assert.False(t, body.Enabled)

	var revoke sqlexec.Request
	for _, req := range exec.Requests {
		if req.QueryKey.Equal(querykey.TableAPIAccessRevoke) {
			revoke = req
		}
	}
	assert.Contains(t, revoke.SQL, "revoke all on table %s from %I")
	assert.Contains(t, revoke.SQL, "16384::regclass")
	assert.Equal(t, testConn, revoke.ConnectionString)
}

func TestSetTableAPIAccess_Validation(t *testing.T) {
	srv, exec := newTestServer(t, &database{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing enabled", "/projects/default/tables/16384/api-access", `{}`},
		{"bad json", "/projects/default/tables/16384/api-access", `{`},
		{"zero relation", "/projects/default/tables/0/api-access", `{"enabled": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, CodeBadRequest, decode[ErrorResponse](t, resp).Code)
		})
	}
	assert.Zero(t, exec.Calls())
}

func TestSetTableAPIAccess_ExecFailure(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Fail("permission denied for table todos", "42501")}
	cache := querycache.New()
	h := NewHandlers(
		&fakeBackend{exec: exec, cache: cache},
		privileges.NewService(privileges.NewReader(exec, cache), cache),
		privileges.NewMutator(exec, cache, nil),
	)
	srv := httptest.NewServer(NewRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/projects/default/tables/16384/api-access", "application/json",
		strings.NewReader(`{"enabled": true}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "42501", body.Code)
	assert.Contains(t, body.Error, "permission denied")
}

func TestGetBucketEstimate(t *testing.T) {
	tests := []struct {
		name      string
		estimate  any
		want      *int64
		condition buckets.RunCondition
	}{
		{"small", int64(12), ptr(int64(12)), buckets.RunAuto},
		{"at threshold", int64(1000), ptr(int64(1000)), buckets.RunAuto},
		{"large", int64(5000), ptr(int64(5000)), buckets.RunConfirm},
		{"unknown", nil, nil, buckets.RunConfirm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &database{estimate: tt.estimate})

			resp, err := http.Get(srv.URL + "/projects/default/storage/buckets/size-limit-estimate")
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			body := decode[EstimateResponse](t, resp)
			assert.Equal(t, tt.want, body.Estimate)
			assert.Equal(t, int64(1000), body.Threshold)
			assert.Equal(t, tt.condition, body.RunCondition)
		})
	}
}

func TestRunLargestBuckets(t *testing.T) {
	srv, _ := newTestServer(t, &database{estimate: int64(3)})

	resp, err := http.Post(srv.URL+"/projects/default/storage/buckets/largest?limit_bytes=2097152", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[LargestBucketsResponse](t, resp)
	require.Len(t, body.Buckets, 3)
	assert.Equal(t, "videos", body.Buckets[0].Name)
	assert.Equal(t, "avatars", body.Buckets[1].Name)
	assert.Equal(t, "docs", body.Buckets[2].Name)
	assert.Nil(t, body.Buckets[2].FileSizeLimit)

	require.Len(t, body.Exceeding, 1)
	assert.Equal(t, "videos", body.Exceeding[0].Name)
}

func TestRunLargestBuckets_RequiresConfirmation(t *testing.T) {
	srv, exec := newTestServer(t, &database{estimate: int64(50_000)})

	resp, err := http.Post(srv.URL+"/projects/default/storage/buckets/largest", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, CodeConfirmationRequired, decode[ErrorResponse](t, resp).Code)
	for _, req := range exec.Requests {
		assert.False(t, req.QueryKey.Equal(querykey.BucketsLargestSizeLimit), "scan must not run unconfirmed")
	}

	resp, err = http.Post(srv.URL+"/projects/default/storage/buckets/largest?confirm=true", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[LargestBucketsResponse](t, resp).Buckets, 3)
}

func TestRunLargestBuckets_ExecFailure(t *testing.T) {
	srv, _ := newTestServer(t, &database{
		estimate:  int64(1),
		bucketErr: &sqlexec.ExecError{Message: `relation "storage.buckets" does not exist`, Code: "42P01"},
	})

	resp, err := http.Post(srv.URL+"/projects/default/storage/buckets/largest", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "42P01", decode[ErrorResponse](t, resp).Code)
}

func TestRunLargestBuckets_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t, &database{estimate: int64(1)})

	resp, err := http.Post(srv.URL+"/projects/default/storage/buckets/largest?limit_bytes=-1", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &database{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func ptr[T any](v T) *T { return &v }
