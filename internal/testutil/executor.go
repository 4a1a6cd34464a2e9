// Package testutil provides fakes shared by tests across packages.
package testutil

import (
	"context"
	"sync"

	"github.com/willibrandon/studio/internal/sqlexec"
)

// FakeExecutor implements sqlexec.Executor. ExecuteFn decides the outcome of
// each call; every request is recorded for assertions.
type FakeExecutor struct {
	mu        sync.Mutex
	ExecuteFn func(ctx context.Context, req sqlexec.Request) (sqlexec.Result, error)
	Requests  []sqlexec.Request
}

// Execute implements sqlexec.Executor.
func (f *FakeExecutor) Execute(ctx context.Context, req sqlexec.Request) (sqlexec.Result, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	fn := f.ExecuteFn
	f.mu.Unlock()

	if fn == nil {
		return sqlexec.Result{Rows: []sqlexec.Row{}}, nil
	}
	return fn(ctx, req)
}

// Calls returns the number of executions so far.
func (f *FakeExecutor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

// LastRequest returns the most recent request, or the zero value.
func (f *FakeExecutor) LastRequest() sqlexec.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Requests) == 0 {
		return sqlexec.Request{}
	}
	return f.Requests[len(f.Requests)-1]
}

// Rows returns an ExecuteFn that always yields rows.
func Rows(rows ...sqlexec.Row) func(context.Context, sqlexec.Request) (sqlexec.Result, error) {
	return func(context.Context, sqlexec.Request) (sqlexec.Result, error) {
		return sqlexec.Result{Rows: rows}, nil
	}
}

// Fail returns an ExecuteFn that always fails with an *sqlexec.ExecError.
func Fail(message, code string) func(context.Context, sqlexec.Request) (sqlexec.Result, error) {
	return func(_ context.Context, req sqlexec.Request) (sqlexec.Result, error) {
		return sqlexec.Result{}, &sqlexec.ExecError{Message: message, Code: code, QueryKey: req.QueryKey}
	}
}

// Notifications records user-facing error notifications.
type Notifications struct {
	mu       sync.Mutex
	Messages []string
}

// Error implements privileges.Notifier.
func (n *Notifications) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, message)
}

// All returns a copy of the recorded messages.
func (n *Notifications) All() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Messages...)
}
