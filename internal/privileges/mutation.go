package privileges

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/db/queries"
	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
)

// Notifier shows a user-facing error notification.
type Notifier interface {
	Error(message string)
}

// MutationVariables identify the relation whose API access changes.
// TableName is optional and narrows the invalidated projection key.
type MutationVariables struct {
	ProjectRef       string
	ConnectionString string
	RelationID       uint32
	TableName        string
}

// MutationOptions are the caller's continuations. When OnError is set, the
// generic failure notification is not shown.
type MutationOptions struct {
	OnSuccess func(rows []sqlexec.Row, vars MutationVariables)
	OnError   func(err error, vars MutationVariables)
}

type accessAction string

const (
	actionEnable  accessAction = "enable"
	actionDisable accessAction = "disable"
)

func apiAccessChanges(relationID uint32) []models.TablePrivilegeChange {
	changes := make([]models.TablePrivilegeChange, 0, len(APIAccessRoles))
	for _, role := range APIAccessRoles {
		changes = append(changes, models.TablePrivilegeChange{
			Grantee:       role,
			PrivilegeType: queries.PrivilegeAll,
			RelationID:    relationID,
		})
	}
	return changes
}

// EnableTableAPIAccess grants ALL on the relation to the data-API roles in
// one statement and returns the raw result rows.
func EnableTableAPIAccess(ctx context.Context, exec sqlexec.Executor, vars MutationVariables) ([]sqlexec.Row, error) {
	sql, err := queries.GrantTablePrivilegesSQL(apiAccessChanges(vars.RelationID))
	if err != nil {
		return nil, fmt.Errorf("build grant: %w", err)
	}
	return executeChange(ctx, exec, vars, sql, querykey.TableAPIAccessGrant)
}

// DisableTableAPIAccess revokes ALL on the relation from the data-API roles
// in one statement and returns the raw result rows.
func DisableTableAPIAccess(ctx context.Context, exec sqlexec.Executor, vars MutationVariables) ([]sqlexec.Row, error) {
	sql, err := queries.RevokeTablePrivilegesSQL(apiAccessChanges(vars.RelationID))
	if err != nil {
		return nil, fmt.Errorf("build revoke: %w", err)
	}
	return executeChange(ctx, exec, vars, sql, querykey.TableAPIAccessRevoke)
}

func executeChange(ctx context.Context, exec sqlexec.Executor, vars MutationVariables, sql string, key querykey.Key) ([]sqlexec.Row, error) {
	if vars.ProjectRef == "" {
		return nil, sqlexec.ErrProjectRefRequired
	}
	res, err := exec.Execute(ctx, sqlexec.Request{
		ProjectRef:       vars.ProjectRef,
		ConnectionString: vars.ConnectionString,
		SQL:              sql,
		QueryKey:         key,
	})
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Mutator toggles table API access and keeps cached reads in step.
type Mutator struct {
	exec     sqlexec.Executor
	cache    *querycache.Cache
	notifier Notifier
}

// NewMutator creates a Mutator. notifier may be nil, in which case failures
// without an OnError handler are only logged.
func NewMutator(exec sqlexec.Executor, cache *querycache.Cache, notifier Notifier) *Mutator {
	return &Mutator{exec: exec, cache: cache, notifier: notifier}
}

// Enable grants API access to the relation.
func (m *Mutator) Enable(ctx context.Context, vars MutationVariables, opts MutationOptions) ([]sqlexec.Row, error) {
	return m.mutate(ctx, actionEnable, vars, opts)
}

// Disable revokes API access from the relation.
func (m *Mutator) Disable(ctx context.Context, vars MutationVariables, opts MutationOptions) ([]sqlexec.Row, error) {
	return m.mutate(ctx, actionDisable, vars, opts)
}

// Set enables or disables API access.
func (m *Mutator) Set(ctx context.Context, enabled bool, vars MutationVariables, opts MutationOptions) ([]sqlexec.Row, error) {
	if enabled {
		return m.Enable(ctx, vars, opts)
	}
	return m.Disable(ctx, vars, opts)
}

func (m *Mutator) mutate(ctx context.Context, action accessAction, vars MutationVariables, opts MutationOptions) ([]sqlexec.Row, error) {
	log := logger.With(
		"mutation_id", uuid.NewString(),
		"action", string(action),
		"project", vars.ProjectRef,
		"relation_id", vars.RelationID,
	)

	var (
		rows []sqlexec.Row
		err  error
	)
	switch action {
	case actionEnable:
		rows, err = EnableTableAPIAccess(ctx, m.exec, vars)
	default:
		rows, err = DisableTableAPIAccess(ctx, m.exec, vars)
	}
	if err != nil {
		log.Warn("Table API access change failed", "error", err)
		m.fail(action, err, vars, opts)
		return nil, err
	}

	if err := m.invalidate(ctx, vars); err != nil {
		log.Warn("Refetch after API access change failed", "error", err)
	}
	log.Info("Table API access changed")

	if opts.OnSuccess != nil {
		opts.OnSuccess(rows, vars)
	}
	return rows, nil
}

// invalidate runs both invalidations concurrently and waits for them.
func (m *Mutator) invalidate(ctx context.Context, vars MutationVariables) error {
	var g errgroup.Group
	g.Go(func() error {
		return InvalidateTablePrivileges(ctx, m.cache, vars.ProjectRef)
	})
	g.Go(func() error {
		return InvalidateTableAPIAccess(ctx, m.cache, vars.ProjectRef, vars.RelationID, vars.TableName)
	})
	return g.Wait()
}

func (m *Mutator) fail(action accessAction, err error, vars MutationVariables, opts MutationOptions) {
	if opts.OnError != nil {
		opts.OnError(err, vars)
		return
	}
	if m.notifier != nil {
		m.notifier.Error(FailureMessage(action == actionEnable, err))
	}
}

// FailureMessage is the notification text for a failed toggle.
func FailureMessage(enable bool, err error) string {
	verb := "disable"
	if enable {
		verb = "enable"
	}
	msg := err.Error()
	if execErr, ok := sqlexec.AsExecError(err); ok {
		msg = execErr.Message
	}
	return fmt.Sprintf("Failed to %s API access: %s", verb, msg)
}
