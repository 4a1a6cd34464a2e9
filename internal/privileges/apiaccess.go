package privileges

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/querycache"
	"github.com/willibrandon/studio/internal/querykey"
)

// Roles used by the auto-generated data API.
const (
	RoleAnon          = "anon"
	RoleAuthenticated = "authenticated"
)

// APIAccessRoles are the roles whose grants decide table API access.
var APIAccessRoles = []string{RoleAnon, RoleAuthenticated}

func isAPIAccessRole(role string) bool {
	return slices.Contains(APIAccessRoles, role)
}

// RoleSet is a set of role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from names.
func NewRoleSet(names ...string) RoleSet {
	s := make(RoleSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role string) bool {
	_, ok := s[role]
	return ok
}

// Sorted returns the members in lexical order.
func (s RoleSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// MarshalYAML encodes the set as a sorted sequence.
func (s RoleSet) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

// APIAccess says whether a relation is reachable through the data API.
// HasAPIAccess is always len(RolesWithAccess) > 0.
type APIAccess struct {
	HasAPIAccess    bool    `json:"has_api_access" yaml:"has_api_access"`
	RolesWithAccess RoleSet `json:"roles_with_access" yaml:"roles_with_access"`
}

// ProjectAPIAccess derives API access for one relation from a snapshot. A
// non-zero relationID selects by id; otherwise schema and tableName must
// match exactly. An unmatched relation has no access.
func ProjectAPIAccess(snapshot []models.RelationPrivileges, relationID uint32, schema, tableName string) APIAccess {
	roles := NewRoleSet()

	for _, rel := range snapshot {
		var match bool
		if relationID != 0 {
			match = rel.RelationID == relationID
		} else {
			match = rel.Schema == schema && rel.Name == tableName
		}
		if !match {
			continue
		}
		for _, p := range rel.Privileges {
			if isAPIAccessRole(p.Grantee) {
				roles[p.Grantee] = struct{}{}
			}
		}
		break
	}

	return APIAccess{
		HasAPIAccess:    len(roles) > 0,
		RolesWithAccess: roles,
	}
}

// TableAPIAccessVariables identify the relation whose access is read.
type TableAPIAccessVariables struct {
	ProjectRef       string
	ConnectionString string
	RelationID       uint32
	Schema           string
	TableName        string
}

// Enabled reports whether the read may run: a project, a connection and
// either a relation id or a schema and table name.
func (v TableAPIAccessVariables) Enabled() bool {
	hasTarget := v.RelationID != 0 || (v.Schema != "" && v.TableName != "")
	return v.ProjectRef != "" && v.ConnectionString != "" && hasTarget
}

// Key returns the cache key subscribers of this relation listen on. Without
// a relation id it covers every relation of the project.
func (v TableAPIAccessVariables) Key() querykey.Key {
	if v.RelationID == 0 {
		return querykey.TableAPIAccessAll(v.ProjectRef)
	}
	return querykey.TableAPIAccess(v.ProjectRef, v.RelationID, v.TableName)
}

// TableAPIAccessResult is the outcome of a projection read. Skipped reads
// never reached the database and carry no data.
type TableAPIAccessResult struct {
	Data    *APIAccess
	Skipped bool
}

// Service answers API-access reads from the shared snapshot.
type Service struct {
	reader *Reader
	cache  *querycache.Cache
}

// NewService creates a Service.
func NewService(reader *Reader, cache *querycache.Cache) *Service {
	return &Service{reader: reader, cache: cache}
}

// TableAPIAccess reads API access for a relation. The read is skipped when
// enabled is false or vars lack a project, connection or target.
func (s *Service) TableAPIAccess(ctx context.Context, vars TableAPIAccessVariables, enabled bool) (TableAPIAccessResult, error) {
	return s.read(ctx, vars, enabled, false)
}

// RefetchTableAPIAccess is TableAPIAccess after an invalidation: the
// snapshot is fetched again even if the cache still holds a fresh copy.
func (s *Service) RefetchTableAPIAccess(ctx context.Context, vars TableAPIAccessVariables, enabled bool) (TableAPIAccessResult, error) {
	return s.read(ctx, vars, enabled, true)
}

func (s *Service) read(ctx context.Context, vars TableAPIAccessVariables, enabled, refetch bool) (TableAPIAccessResult, error) {
	if !enabled || !vars.Enabled() {
		return TableAPIAccessResult{Skipped: true}, nil
	}

	pv := ProjectVars{ProjectRef: vars.ProjectRef, ConnectionString: vars.ConnectionString}

	var (
		snapshot []models.RelationPrivileges
		err      error
	)
	if refetch {
		snapshot, err = s.reader.RefetchTablePrivileges(ctx, pv)
	} else {
		snapshot, err = s.reader.TablePrivileges(ctx, pv)
	}
	if err != nil {
		return TableAPIAccessResult{}, err
	}

	access := ProjectAPIAccess(snapshot, vars.RelationID, vars.Schema, vars.TableName)
	return TableAPIAccessResult{Data: &access}, nil
}

// Subscribe calls fn whenever the API access of the relation in vars is
// invalidated.
func (s *Service) Subscribe(vars TableAPIAccessVariables, fn querycache.Listener) (unsubscribe func()) {
	return s.cache.Subscribe(vars.Key(), fn)
}

// InvalidateTableAPIAccess invalidates the API-access projection of one
// relation. An empty tableName covers every name variant of the relation.
func InvalidateTableAPIAccess(ctx context.Context, cache *querycache.Cache, projectRef string, relationID uint32, tableName string) error {
	return cache.Invalidate(ctx, querykey.TableAPIAccess(projectRef, relationID, tableName))
}
