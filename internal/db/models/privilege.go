package models

// PrivilegeGrant is one ACL entry on a relation.
type PrivilegeGrant struct {
	Grantor       string `json:"grantor" yaml:"grantor"`
	Grantee       string `json:"grantee" yaml:"grantee"` // "PUBLIC" for the public pseudo-role
	PrivilegeType string `json:"privilege_type" yaml:"privilege_type"`
	IsGrantable   bool   `json:"is_grantable" yaml:"is_grantable"`
}

// RelationPrivileges holds every grant on one relation.
type RelationPrivileges struct {
	RelationID uint32           `json:"relation_id" yaml:"relation_id"`
	Schema     string           `json:"schema" yaml:"schema"`
	Name       string           `json:"name" yaml:"name"`
	Privileges []PrivilegeGrant `json:"privileges" yaml:"privileges"`
}

// QualifiedName returns schema.name.
func (r RelationPrivileges) QualifiedName() string {
	return r.Schema + "." + r.Name
}

// GranteeNames returns the distinct grantees in first-seen order.
func (r RelationPrivileges) GranteeNames() []string {
	seen := make(map[string]bool, len(r.Privileges))
	var names []string
	for _, p := range r.Privileges {
		if !seen[p.Grantee] {
			seen[p.Grantee] = true
			names = append(names, p.Grantee)
		}
	}
	return names
}

// TablePrivilegeChange is one grant or revoke to apply to a relation.
type TablePrivilegeChange struct {
	Grantee       string
	PrivilegeType string
	RelationID    uint32
	IsGrantable   bool
}
