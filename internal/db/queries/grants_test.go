package queries

import (
	"strings"
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/studio/internal/db/models"
)

func apiRoles(relationID uint32) []models.TablePrivilegeChange {
	return []models.TablePrivilegeChange{
		{Grantee: "anon", PrivilegeType: "ALL", RelationID: relationID},
		{Grantee: "authenticated", PrivilegeType: "ALL", RelationID: relationID},
	}
}

func TestGrantTablePrivilegesSQL(t *testing.T) {
	sql, err := GrantTablePrivilegesSQL(apiRoles(42))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "do $$"))
	assert.Contains(t, sql, "execute format('grant all on table %s to %I', 42::regclass, 'anon');")
	assert.Contains(t, sql, "execute format('grant all on table %s to %I', 42::regclass, 'authenticated');")
	assert.Equal(t, 1, strings.Count(sql, "do $$"), "one round trip for the whole batch")

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestRevokeTablePrivilegesSQL(t *testing.T) {
	sql, err := RevokeTablePrivilegesSQL(apiRoles(7))
	require.NoError(t, err)

	assert.Contains(t, sql, "execute format('revoke all on table %s from %I', 7::regclass, 'anon');")
	assert.NotContains(t, sql, "grant all")

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestPrivilegeStatement_Options(t *testing.T) {
	sql, err := GrantTablePrivilegesSQL([]models.TablePrivilegeChange{
		{Grantee: "PUBLIC", PrivilegeType: "select", RelationID: 1},
		{Grantee: "editor", PrivilegeType: "update", RelationID: 1, IsGrantable: true},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "'grant select on table %s to public', 1::regclass);")
	assert.Contains(t, sql, "'grant update on table %s to %I with grant option', 1::regclass, 'editor');")

	sql, err = RevokeTablePrivilegesSQL([]models.TablePrivilegeChange{
		{Grantee: "editor", PrivilegeType: "update", RelationID: 1, IsGrantable: true},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "'revoke grant option for update on table %s from %I'")
}

func TestPrivilegeStatement_QuotesHostileRoleNames(t *testing.T) {
	sql, err := GrantTablePrivilegesSQL([]models.TablePrivilegeChange{
		{Grantee: "x'); drop table users; --", PrivilegeType: "ALL", RelationID: 3},
	})
	require.NoError(t, err)
	assert.Contains(t, sql, "'x''); drop table users; --'")

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestPrivilegesBlock_DollarTagAvoidsBody(t *testing.T) {
	sql, err := GrantTablePrivilegesSQL([]models.TablePrivilegeChange{
		{Grantee: "we$$ird", PrivilegeType: "ALL", RelationID: 3},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sql, "do $studio_0$"))
	assert.True(t, strings.HasSuffix(sql, "$studio_0$;"))

	_, err = pg_query.Parse(sql)
	assert.NoError(t, err)
}

func TestPrivilegesBlock_Errors(t *testing.T) {
	tests := []struct {
		name    string
		changes []models.TablePrivilegeChange
	}{
		{"empty batch", nil},
		{"bad privilege", []models.TablePrivilegeChange{{Grantee: "anon", PrivilegeType: "OWN", RelationID: 1}}},
		{"no relation", []models.TablePrivilegeChange{{Grantee: "anon", PrivilegeType: "ALL"}}},
		{"no grantee", []models.TablePrivilegeChange{{PrivilegeType: "ALL", RelationID: 1}}},
		{"nul grantee", []models.TablePrivilegeChange{{Grantee: "a\x00", PrivilegeType: "ALL", RelationID: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GrantTablePrivilegesSQL(tt.changes)
			assert.Error(t, err)
		})
	}

	_, err := RevokeTablePrivilegesSQL(nil)
	assert.ErrorIs(t, err, ErrNoPrivilegeChanges)
}
