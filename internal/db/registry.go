package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/willibrandon/studio/internal/config"
	"github.com/willibrandon/studio/internal/logger"
)

// ErrUnknownProject is returned for a project ref that is not configured
// when no explicit connection string is given.
var ErrUnknownProject = errors.New("unknown project")

// OpenFunc opens a pool. NewConnectionPool is the default.
type OpenFunc func(ctx context.Context, opts ConnectOptions) (*pgxpool.Pool, error)

// Registry hands out one pool per (project, connection string).
type Registry struct {
	mu       sync.Mutex
	projects map[string]config.ProjectConfig
	pools    map[string]*pgxpool.Pool
	failures map[string]*ReconnectionState

	group       singleflight.Group
	open        OpenFunc
	interactive bool
	now         func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithInteractivePassword allows terminal password prompts.
func WithInteractivePassword(interactive bool) RegistryOption {
	return func(r *Registry) {
		r.interactive = interactive
	}
}

// WithOpenFunc replaces the pool constructor.
func WithOpenFunc(open OpenFunc) RegistryOption {
	return func(r *Registry) {
		r.open = open
	}
}

// WithRegistryClock overrides the time source used for reconnect cooldowns.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates a registry over the configured projects.
func NewRegistry(projects []config.ProjectConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		projects: make(map[string]config.ProjectConfig, len(projects)),
		pools:    make(map[string]*pgxpool.Pool),
		failures: make(map[string]*ReconnectionState),
		open:     NewConnectionPool,
		now:      time.Now,
	}
	for _, p := range projects {
		r.projects[p.Ref] = p
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConnectionString returns the configured connection string for ref.
func (r *Registry) ConnectionString(ref string) (string, bool) {
	p, ok := r.projects[ref]
	return p.ConnectionString, ok && p.ConnectionString != ""
}

// Pool returns the pool for projectRef, opening it on first use. An empty
// connectionString selects the project's configured one.
func (r *Registry) Pool(ctx context.Context, projectRef, connectionString string) (*pgxpool.Pool, error) {
	opts, err := r.connectOptions(projectRef, connectionString)
	if err != nil {
		return nil, err
	}
	key := projectRef + "\x00" + opts.ConnectionString

	r.mu.Lock()
	if pool, ok := r.pools[key]; ok {
		r.mu.Unlock()
		return pool, nil
	}
	if state, ok := r.failures[key]; ok {
		if ready, wait := state.Ready(r.now()); !ready {
			r.mu.Unlock()
			return nil, fmt.Errorf("project %s unreachable, next attempt in %s: %w",
				projectRef, wait.Round(time.Second), state.LastError)
		}
	}
	r.mu.Unlock()

	res, err, _ := r.group.Do(key, func() (any, error) {
		pool, err := r.open(ctx, opts)

		r.mu.Lock()
		defer r.mu.Unlock()

		if err != nil {
			state, ok := r.failures[key]
			if !ok {
				state = &ReconnectionState{}
				r.failures[key] = state
			}
			state.Failed(r.now(), err)
			logger.Warn("Failed to open project pool",
				"project", projectRef,
				"attempt", state.Attempt,
				"cooldown", state.NextDelay(),
				"error", err,
			)
			return nil, err
		}

		delete(r.failures, key)
		r.pools[key] = pool
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*pgxpool.Pool), nil
}

func (r *Registry) connectOptions(projectRef, connectionString string) (ConnectOptions, error) {
	project, known := r.projects[projectRef]
	opts := ConnectOptions{
		ProjectRef:       projectRef,
		ConnectionString: connectionString,
		Interactive:      r.interactive,
	}
	if known {
		opts.PasswordCommand = project.PasswordCommand
	}
	if opts.ConnectionString == "" {
		if !known || project.ConnectionString == "" {
			return ConnectOptions{}, fmt.Errorf("%w: %s", ErrUnknownProject, projectRef)
		}
		opts.ConnectionString = project.ConnectionString
	}
	return opts, nil
}

// Close closes every open pool.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, pool := range r.pools {
		pool.Close()
		delete(r.pools, key)
	}
}
