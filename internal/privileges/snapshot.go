// Package privileges reads relation grants and derives, toggles and
// invalidates table API access for the fixed data-API roles.
package privileges

import (
	"context"
	"fmt"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/db/queries"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
	"github.com/willibrandon/studio/internal/sqlexec"
)

// ProjectVars identifies the database a read runs against.
type ProjectVars struct {
	ProjectRef       string
	ConnectionString string
}

// Reader fetches the privilege snapshot of a project.
type Reader struct {
	exec  sqlexec.Executor
	cache *querycache.Cache
}

// NewReader creates a snapshot reader.
func NewReader(exec sqlexec.Executor, cache *querycache.Cache) *Reader {
	return &Reader{exec: exec, cache: cache}
}

// TablePrivileges returns the cached snapshot for the project, fetching it
// when missing or stale.
func (r *Reader) TablePrivileges(ctx context.Context, vars ProjectVars) ([]models.RelationPrivileges, error) {
	return querycache.Fetch(ctx, r.cache, querykey.TablePrivileges(vars.ProjectRef), r.fetcher(vars))
}

// RefetchTablePrivileges fetches the snapshot regardless of cache state.
func (r *Reader) RefetchTablePrivileges(ctx context.Context, vars ProjectVars) ([]models.RelationPrivileges, error) {
	return querycache.Refetch(ctx, r.cache, querykey.TablePrivileges(vars.ProjectRef), r.fetcher(vars))
}

func (r *Reader) fetcher(vars ProjectVars) func(context.Context) ([]models.RelationPrivileges, error) {
	return func(ctx context.Context) ([]models.RelationPrivileges, error) {
		if vars.ProjectRef == "" {
			return nil, sqlexec.ErrProjectRefRequired
		}
		sql, err := queries.TablePrivilegesSQL()
		if err != nil {
			return nil, err
		}
		res, err := r.exec.Execute(ctx, sqlexec.Request{
			ProjectRef:       vars.ProjectRef,
			ConnectionString: vars.ConnectionString,
			SQL:              sql,
			QueryKey:         querykey.TablePrivileges(vars.ProjectRef),
		})
		if err != nil {
			return nil, err
		}
		return DecodeSnapshot(res.Rows)
	}
}

// DecodeSnapshot converts snapshot query rows into relation records,
// keeping row order.
func DecodeSnapshot(rows []sqlexec.Row) ([]models.RelationPrivileges, error) {
	snapshot := make([]models.RelationPrivileges, 0, len(rows))
	for i, row := range rows {
		id, ok := sqlexec.Uint32(row["relation_id"])
		if !ok {
			return nil, fmt.Errorf("decode privileges row %d: invalid relation_id %v", i, row["relation_id"])
		}

		rel := models.RelationPrivileges{
			RelationID: id,
			Schema:     sqlexec.String(row["schema"]),
			Name:       sqlexec.String(row["name"]),
			Privileges: []models.PrivilegeGrant{},
		}
		if err := sqlexec.DecodeJSON(row["privileges"], &rel.Privileges); err != nil {
			return nil, fmt.Errorf("decode privileges of %s: %w", rel.QualifiedName(), err)
		}
		if rel.Privileges == nil {
			rel.Privileges = []models.PrivilegeGrant{}
		}
		snapshot = append(snapshot, rel)
	}
	return snapshot, nil
}

// InvalidateTablePrivileges marks the project's snapshot stale and notifies
// its subscribers.
func InvalidateTablePrivileges(ctx context.Context, cache *querycache.Cache, projectRef string) error {
	return cache.Invalidate(ctx, querykey.TablePrivileges(projectRef))
}
