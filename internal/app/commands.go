package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/willibrandon/studio/internal/buckets"
	"github.com/willibrandon/studio/internal/db/queries"
	"github.com/willibrandon/studio/internal/logger"
	"github.com/willibrandon/studio/internal/privileges"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
	"github.com/willibrandon/studio/internal/ui"
)

// commandTimeout bounds every database round trip started from the console.
const commandTimeout = 30 * time.Second

// errRelationNotFound is returned when a created table cannot be looked up.
var errRelationNotFound = errors.New("relation not found after create")

// connectProject opens the project's pool and reads the server version.
func connectProject(s *Services, project privileges.ProjectVars) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		version, err := s.ServerVersion(ctx, project)
		if err != nil {
			logger.Warn("Project connection failed", "project", project.ProjectRef, "error", err)
			return ProjectConnectionFailedMsg{ProjectRef: project.ProjectRef, Err: err}
		}
		return ProjectConnectedMsg{ProjectRef: project.ProjectRef, Version: version}
	}
}

// tickStatusBar creates a command to update the status bar timestamp
func tickStatusBar(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StatusBarTickMsg{Timestamp: t}
	})
}

// loadTablePrivileges reads the privilege snapshot. Force bypasses a fresh
// cached copy.
func loadTablePrivileges(reader *privileges.Reader, req ui.RefreshTablePrivilegesCmd) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		vars := privileges.ProjectVars{ProjectRef: req.ProjectRef, ConnectionString: req.ConnectionString}
		read := reader.TablePrivileges
		if req.Force {
			read = reader.RefetchTablePrivileges
		}
		relations, err := read(ctx, vars)
		return ui.TablePrivilegesMsg{ProjectRef: req.ProjectRef, Relations: relations, Err: err}
	}
}

// loadTableAPIAccess runs one API-access read.
func loadTableAPIAccess(access *privileges.Service, req ui.LoadTableAPIAccessCmd) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		read := access.TableAPIAccess
		if req.Refetch {
			read = access.RefetchTableAPIAccess
		}
		result, err := read(ctx, req.Vars, req.Enabled)
		return ui.TableAPIAccessMsg{Vars: req.Vars, Result: result, Err: err}
	}
}

// estimateBuckets reads the bucket estimate and classifies it.
func estimateBuckets(projectRef string, q *buckets.LargestSizeLimitsQuery, refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		var estimate *int64
		if refresh {
			estimate = q.RefreshEstimate(ctx)
		} else {
			estimate = q.Estimate(ctx)
		}
		return ui.BucketEstimateMsg{
			ProjectRef: projectRef,
			Estimate:   estimate,
			Condition:  buckets.ClassifyRunCondition(estimate, q.Threshold()),
			Threshold:  q.Threshold(),
		}
	}
}

// fetchLargestBuckets runs the largest-size-limit scan.
func fetchLargestBuckets(projectRef string, q *buckets.LargestSizeLimitsQuery) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		list, err := q.Run(ctx)
		return ui.LargestBucketsMsg{ProjectRef: projectRef, Buckets: list, Err: err}
	}
}

// saveTable applies the editor's save.
func saveTable(s *Services, mutator *privileges.Mutator, save ui.TableSave) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		relationID, err := applyTableSave(ctx, s.Executor, s.Cache, mutator, save)
		return ui.TableSavedMsg{Save: save, RelationID: relationID, Err: err}
	}
}

// applyTableSave creates the table when asked, then applies the Data API
// setting. Without an API change the privilege snapshot is invalidated so
// the list picks up the new relation.
func applyTableSave(ctx context.Context, exec sqlexec.Executor, cache *querycache.Cache, mutator *privileges.Mutator, save ui.TableSave) (uint32, error) {
	relationID := save.RelationID

	if save.Create {
		stmt, err := queries.CreateTableSQL(save.Schema, save.Name)
		if err != nil {
			return 0, err
		}
		if _, err := exec.Execute(ctx, sqlexec.Request{
			ProjectRef:       save.ProjectRef,
			ConnectionString: save.ConnectionString,
			SQL:              stmt,
			QueryKey:         querykey.SQLQuery(save.ProjectRef, querykey.TableCreate...),
		}); err != nil {
			return 0, fmt.Errorf("create table: %w", err)
		}

		relationID, err = lookupRelationID(ctx, exec, save)
		if err != nil {
			return 0, err
		}
		logger.Info("Table created", "project", save.ProjectRef, "schema", save.Schema, "table", save.Name, "relation_id", relationID)
	}

	if save.APIAccess == nil {
		return relationID, privileges.InvalidateTablePrivileges(ctx, cache, save.ProjectRef)
	}

	_, err := mutator.Set(ctx, *save.APIAccess, privileges.MutationVariables{
		ProjectRef:       save.ProjectRef,
		ConnectionString: save.ConnectionString,
		RelationID:       relationID,
		TableName:        save.Name,
	}, privileges.MutationOptions{})
	if err != nil && save.Create {
		return relationID, fmt.Errorf("table created but API access was not applied: %w", err)
	}
	return relationID, err
}

func lookupRelationID(ctx context.Context, exec sqlexec.Executor, save ui.TableSave) (uint32, error) {
	stmt, err := queries.RelationIDSQL(save.Schema, save.Name)
	if err != nil {
		return 0, err
	}
	res, err := exec.Execute(ctx, sqlexec.Request{
		ProjectRef:       save.ProjectRef,
		ConnectionString: save.ConnectionString,
		SQL:              stmt,
		QueryKey:         querykey.SQLQuery(save.ProjectRef, querykey.RelationLookup...),
	})
	if err != nil {
		return 0, fmt.Errorf("look up relation: %w", err)
	}
	if len(res.Rows) == 0 {
		return 0, errRelationNotFound
	}
	id, ok := sqlexec.Uint32(res.Rows[0]["relation_id"])
	if !ok || id == 0 {
		return 0, errRelationNotFound
	}
	return id, nil
}

// cacheListener forwards invalidations into events without blocking the
// invalidating goroutine. A full channel drops the event; the pending one
// already triggers the same refetch.
func cacheListener(events chan<- CacheInvalidatedMsg, projectRef string, watch bool) querycache.Listener {
	return func(_ context.Context, ev querycache.Event) error {
		select {
		case events <- CacheInvalidatedMsg{ProjectRef: projectRef, Event: ev, Watch: watch}:
		default:
		}
		return nil
	}
}

// waitForCacheEvent blocks until the next relayed invalidation.
func waitForCacheEvent(events <-chan CacheInvalidatedMsg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}
