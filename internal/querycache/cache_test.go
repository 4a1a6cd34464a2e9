package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/studio/internal/querykey"
)

func TestFetch_CachesUntilInvalidated(t *testing.T) {
	c := New()
	key := querykey.TablePrivileges("abc")
	var calls int

	fetch := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := Fetch(context.Background(), c, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = Fetch(context.Background(), c, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "second fetch should hit the cache")

	require.NoError(t, c.Invalidate(context.Background(), querykey.Project("abc")))
	assert.True(t, c.IsStale(key))

	stale, ok := Get[int](c, key)
	assert.True(t, ok)
	assert.Equal(t, 1, stale)

	v, err = Fetch(context.Background(), c, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.False(t, c.IsStale(key))
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c := New()
	key := querykey.New("k")
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, c.IsStale(key))

	v, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestFetch_SingleFlight(t *testing.T) {
	c := New()
	key := querykey.New("slow")
	release := make(chan struct{})
	var calls atomic.Int32

	fn := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := Fetch(context.Background(), c, key, fn)
			results[i] = v
		}()
	}

	// Let the goroutines pile up on the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestWithStaleTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(WithStaleTime(time.Minute), WithClock(func() time.Time { return now }))
	key := querykey.New("k")

	c.Set(key, 1)
	assert.False(t, c.IsStale(key))

	now = now.Add(2 * time.Minute)
	assert.True(t, c.IsStale(key))
}

func TestInvalidate_NotifiesOverlappingSubscribers(t *testing.T) {
	c := New()
	var mu sync.Mutex
	var seen []string

	record := func(name string) Listener {
		return func(ctx context.Context, ev Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, name+":"+ev.Key.String())
			return nil
		}
	}

	c.Subscribe(querykey.TableAPIAccess("abc", 42, "users"), record("narrow"))
	c.Subscribe(querykey.TableAPIAccessAll("abc"), record("wide"))
	c.Subscribe(querykey.TablePrivileges("abc"), record("snapshot"))
	unsubscribe := c.Subscribe(querykey.TableAPIAccess("abc", 42, ""), record("gone"))
	unsubscribe()

	require.NoError(t, c.Invalidate(context.Background(), querykey.TableAPIAccess("abc", 42, "")))

	assert.ElementsMatch(t, []string{
		"narrow:projects/abc/privileges/table-api-access/42",
		"wide:projects/abc/privileges/table-api-access/42",
	}, seen)
}

func TestInvalidate_ReturnsListenerError(t *testing.T) {
	c := New()
	boom := errors.New("refetch failed")
	c.Subscribe(querykey.New("a"), func(context.Context, Event) error { return boom })

	err := c.Invalidate(context.Background(), querykey.New("a"))
	assert.ErrorIs(t, err, boom)
}

func TestRemove(t *testing.T) {
	c := New()
	c.Set(querykey.New("a", "1"), 1)
	c.Set(querykey.New("b", "1"), 2)

	c.Remove(querykey.New("a"))

	_, ok := Get[int](c, querykey.New("a", "1"))
	assert.False(t, ok)
	v, ok := Get[int](c, querykey.New("b", "1"))
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestRefetch_IgnoresFreshEntry(t *testing.T) {
	c := New()
	key := querykey.New("k")
	c.Set(key, 1)

	v, err := Refetch(context.Background(), c, key, func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	cached, ok := Get[int](c, key)
	assert.True(t, ok)
	assert.Equal(t, 2, cached)
}

func TestRefetch_AfterInvalidateDoesNotJoinOlderRead(t *testing.T) {
	c := New()
	key := querykey.TablePrivileges("abc")
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	oldDone := make(chan string, 1)
	go func() {
		v, _ := Fetch(ctx, c, key, func(context.Context) (string, error) {
			close(started)
			<-release
			return "before-grant", nil
		})
		oldDone <- v
	}()
	<-started

	require.NoError(t, c.Invalidate(ctx, querykey.Project("abc")))

	v, err := Refetch(ctx, c, key, func(context.Context) (string, error) {
		return "after-grant", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after-grant", v)

	close(release)
	assert.Equal(t, "before-grant", <-oldDone)

	assert.False(t, c.IsStale(key))
	v, err = Fetch(ctx, c, key, func(context.Context) (string, error) {
		t.Fatal("fresh entry should be served from the cache")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after-grant", v)
}

func TestRefetch_OvertakenReadIsStoredStale(t *testing.T) {
	c := New()
	key := querykey.TablePrivileges("abc")
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(ctx, c, key, func(context.Context) (string, error) {
			close(started)
			<-release
			return "before-grant", nil
		})
	}()
	<-started

	require.NoError(t, c.Invalidate(ctx, querykey.Project("abc")))
	close(release)
	<-done

	assert.True(t, c.IsStale(key))
	old, ok := Get[string](c, key)
	assert.True(t, ok)
	assert.Equal(t, "before-grant", old)

	v, err := Fetch(ctx, c, key, func(context.Context) (string, error) {
		return "after-grant", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after-grant", v)
	assert.False(t, c.IsStale(key))
}

func TestCache_KeysWithSlashesDoNotCollide(t *testing.T) {
	c := New()
	c.Set(querykey.TableAPIAccess("abc", 42, "a/b"), "slashed")
	c.Set(querykey.TableAPIAccess("abc", 42, "a").With("b"), "nested")

	v, ok := Get[string](c, querykey.TableAPIAccess("abc", 42, "a/b"))
	require.True(t, ok)
	assert.Equal(t, "slashed", v)
}
