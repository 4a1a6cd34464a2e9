package privileges

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
	"github.com/willibrandon/studio/internal/testutil"
)

func mutationVars() MutationVariables {
	return MutationVariables{ProjectRef: "abc", ConnectionString: "c", RelationID: 42}
}

func TestEnable_ExecutesOneGrantStatement(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Rows(sqlexec.Row{"ok": true})}
	m := NewMutator(exec, querycache.New(), nil)

	rows, err := m.Enable(context.Background(), mutationVars(), MutationOptions{})
	require.NoError(t, err)
	assert.Equal(t, []sqlexec.Row{{"ok": true}}, rows)

	require.Equal(t, 1, exec.Calls())
	req := exec.LastRequest()
	assert.True(t, req.QueryKey.Equal(querykey.TableAPIAccessGrant))
	assert.Equal(t, "abc", req.ProjectRef)
	assert.Equal(t, "c", req.ConnectionString)
	assert.Contains(t, req.SQL, "grant all on table %s to %I', 42::regclass, 'anon'")
	assert.Contains(t, req.SQL, "grant all on table %s to %I', 42::regclass, 'authenticated'")
}

func TestDisable_ExecutesOneRevokeStatement(t *testing.T) {
	exec := &testutil.FakeExecutor{}
	m := NewMutator(exec, querycache.New(), nil)

	_, err := m.Disable(context.Background(), mutationVars(), MutationOptions{})
	require.NoError(t, err)

	req := exec.LastRequest()
	assert.True(t, req.QueryKey.Equal(querykey.TableAPIAccessRevoke))
	assert.Equal(t, 2, strings.Count(req.SQL, "revoke all on table"))
	assert.NotContains(t, req.SQL, "grant all")
}

func TestEnable_InvalidatesBothKeysBeforeOnSuccess(t *testing.T) {
	cache := querycache.New()
	m := NewMutator(&testutil.FakeExecutor{}, cache, nil)

	var snapshotInvalidations, accessInvalidations atomic.Int32
	cache.Subscribe(querykey.TablePrivileges("abc"), func(context.Context, querycache.Event) error {
		snapshotInvalidations.Add(1)
		return nil
	})
	cache.Subscribe(querykey.TableAPIAccess("abc", 42, ""), func(context.Context, querycache.Event) error {
		accessInvalidations.Add(1)
		return nil
	})

	var successCalls int
	_, err := m.Enable(context.Background(), mutationVars(), MutationOptions{
		OnSuccess: func(rows []sqlexec.Row, vars MutationVariables) {
			successCalls++
			assert.Equal(t, int32(1), snapshotInvalidations.Load())
			assert.Equal(t, int32(1), accessInvalidations.Load())
			assert.Equal(t, uint32(42), vars.RelationID)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, successCalls)
	assert.Equal(t, int32(1), snapshotInvalidations.Load())
	assert.Equal(t, int32(1), accessInvalidations.Load())
}

func TestEnable_InvalidationsRunConcurrently(t *testing.T) {
	cache := querycache.New()
	m := NewMutator(&testutil.FakeExecutor{}, cache, nil)

	// Each listener waits until the other has started. Run one after the
	// other, neither would ever return.
	var started sync.WaitGroup
	var sequential atomic.Bool
	started.Add(2)
	barrier := func(context.Context, querycache.Event) error {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-time.After(2 * time.Second):
			sequential.Store(true)
			return errors.New("invalidations ran sequentially")
		}
	}
	cache.Subscribe(querykey.TablePrivileges("abc"), barrier)
	cache.Subscribe(querykey.TableAPIAccess("abc", 42, ""), barrier)

	succeeded := false
	_, err := m.Enable(context.Background(), mutationVars(), MutationOptions{
		OnSuccess: func([]sqlexec.Row, MutationVariables) { succeeded = true },
	})
	require.NoError(t, err)
	assert.True(t, succeeded)
	assert.False(t, sequential.Load())
}

func TestEnable_MarksSnapshotStale(t *testing.T) {
	cache := querycache.New()
	cache.Set(querykey.TablePrivileges("abc"), sampleSnapshot())
	m := NewMutator(&testutil.FakeExecutor{}, cache, nil)

	_, err := m.Enable(context.Background(), mutationVars(), MutationOptions{})
	require.NoError(t, err)
	assert.True(t, cache.IsStale(querykey.TablePrivileges("abc")))
}

func TestMutation_FailureWithoutHandlerNotifies(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Fail(`permission denied for table "todos"`, "42501")}
	notes := &testutil.Notifications{}
	m := NewMutator(exec, querycache.New(), notes)

	_, err := m.Enable(context.Background(), mutationVars(), MutationOptions{
		OnSuccess: func([]sqlexec.Row, MutationVariables) { t.Fatal("OnSuccess must not run") },
	})
	require.Error(t, err)
	assert.Equal(t, []string{`Failed to enable API access: permission denied for table "todos"`}, notes.All())

	_, err = m.Disable(context.Background(), mutationVars(), MutationOptions{})
	require.Error(t, err)
	assert.Equal(t, `Failed to disable API access: permission denied for table "todos"`, notes.All()[1])
}

func TestMutation_FailureWithHandlerSuppressesNotification(t *testing.T) {
	exec := &testutil.FakeExecutor{ExecuteFn: testutil.Fail("connection reset", "")}
	notes := &testutil.Notifications{}
	m := NewMutator(exec, querycache.New(), notes)

	var handled error
	_, err := m.Disable(context.Background(), mutationVars(), MutationOptions{
		OnError: func(err error, vars MutationVariables) {
			handled = err
			assert.Equal(t, "abc", vars.ProjectRef)
		},
	})

	require.Error(t, err)
	assert.Empty(t, notes.All())
	require.Error(t, handled)
	assert.Equal(t, "connection reset", handled.Error())
}

func TestMutation_FailureDoesNotInvalidate(t *testing.T) {
	cache := querycache.New()
	var invalidations atomic.Int32
	cache.Subscribe(querykey.Project("abc"), func(context.Context, querycache.Event) error {
		invalidations.Add(1)
		return nil
	})
	m := NewMutator(&testutil.FakeExecutor{ExecuteFn: testutil.Fail("boom", "")}, cache, nil)

	_, err := m.Enable(context.Background(), mutationVars(), MutationOptions{})
	require.Error(t, err)
	assert.Zero(t, invalidations.Load())
}

func TestMutation_MissingRelationIsReportedWithoutExecuting(t *testing.T) {
	exec := &testutil.FakeExecutor{}
	notes := &testutil.Notifications{}
	m := NewMutator(exec, querycache.New(), notes)

	_, err := m.Enable(context.Background(), MutationVariables{ProjectRef: "abc"}, MutationOptions{})
	require.Error(t, err)
	assert.Zero(t, exec.Calls())
	require.Len(t, notes.All(), 1)
	assert.True(t, strings.HasPrefix(notes.All()[0], "Failed to enable API access: "))
}

func TestMutator_Set(t *testing.T) {
	exec := &testutil.FakeExecutor{}
	m := NewMutator(exec, querycache.New(), nil)

	_, err := m.Set(context.Background(), false, mutationVars(), MutationOptions{})
	require.NoError(t, err)
	assert.True(t, exec.LastRequest().QueryKey.Equal(querykey.TableAPIAccessRevoke))

	_, err = m.Set(context.Background(), true, mutationVars(), MutationOptions{})
	require.NoError(t, err)
	assert.True(t, exec.LastRequest().QueryKey.Equal(querykey.TableAPIAccessGrant))
}
