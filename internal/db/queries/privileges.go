package queries

import (
	"fmt"
	"strings"

	"github.com/willibrandon/studio/internal/pgformat"
)

// tablePrivilegesQuery lists every user relation with its ACL expanded.
// Relations that never had an explicit GRANT have a NULL relacl; acldefault
// yields the owner's implicit privileges for them.
const tablePrivilegesQuery = `
SELECT
    c.oid AS relation_id,
    n.nspname AS schema,
    c.relname AS name,
    COALESCE(
        jsonb_agg(
            jsonb_build_object(
                'grantor', acl.grantor::regrole::text,
                'grantee', CASE WHEN acl.grantee = 0 THEN 'PUBLIC' ELSE acl.grantee::regrole::text END,
                'privilege_type', acl.privilege_type,
                'is_grantable', acl.is_grantable
            )
            ORDER BY acl.grantee, acl.privilege_type
        ) FILTER (WHERE acl.privilege_type IS NOT NULL),
        '[]'::jsonb
    ) AS privileges
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN LATERAL aclexplode(COALESCE(c.relacl, acldefault('r', c.relowner))) AS acl ON true
WHERE c.relkind IN ('r', 'p', 'v', 'm', 'f')
  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
  AND n.nspname NOT LIKE 'pg_toast%%'
  AND n.nspname NOT LIKE 'pg_temp_%%'%s
GROUP BY c.oid, n.nspname, c.relname
ORDER BY n.nspname, c.relname`

// TablePrivilegesSQL returns the privilege snapshot query, optionally
// restricted to schemas.
func TablePrivilegesSQL(schemas ...string) (string, error) {
	filter := ""
	if len(schemas) > 0 {
		lits := make([]string, 0, len(schemas))
		for _, s := range schemas {
			lit, err := pgformat.Literal(s)
			if err != nil {
				return "", fmt.Errorf("quote schema %q: %w", s, err)
			}
			lits = append(lits, lit)
		}
		filter = "\n  AND n.nspname IN (" + strings.Join(lits, ", ") + ")"
	}
	return fmt.Sprintf(tablePrivilegesQuery, filter), nil
}
