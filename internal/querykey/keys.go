// Package querykey defines the cache-key namespaces shared by readers,
// mutators and cache subscribers.
package querykey

import (
	"strconv"
	"strings"
)

// Key identifies a cached query. Keys are hierarchical; invalidating a key
// also invalidates every key it prefixes.
type Key []string

// New builds a key from its parts.
func New(parts ...string) Key {
	return Key(append([]string(nil), parts...))
}

// HasPrefix reports whether prefix is a leading subsequence of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, part := range prefix {
		if k[i] != part {
			return false
		}
	}
	return true
}

// Overlaps reports whether one of the two keys prefixes the other.
func (k Key) Overlaps(other Key) bool {
	return k.HasPrefix(other) || other.HasPrefix(k)
}

// Equal reports whether both keys have identical parts.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// String renders the key for logs. Parts may contain "/", so use ID for
// map lookups.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// ID returns a string that identifies k unambiguously. Parts are joined with
// NUL, which Postgres identifiers and literals cannot contain.
func (k Key) ID() string {
	return strings.Join(k, "\x00")
}

// With returns a copy of k extended by parts.
func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// Project is the root namespace for everything cached about one project.
func Project(projectRef string) Key {
	return New("projects", projectRef)
}

// SQLQuery namespaces an ad-hoc SQL read for a project.
func SQLQuery(projectRef string, parts ...string) Key {
	return Project(projectRef).With("query").With(parts...)
}

// TablePrivileges is the privilege snapshot for every relation of a project.
func TablePrivileges(projectRef string) Key {
	return Project(projectRef).With("privileges", "tables")
}

// TableAPIAccessAll prefixes every API-access projection of a project.
func TableAPIAccessAll(projectRef string) Key {
	return Project(projectRef).With("privileges", "table-api-access")
}

// TableAPIAccess addresses the API-access projection of one relation. An
// empty tableName leaves the key open so it prefixes every name variant.
func TableAPIAccess(projectRef string, relationID uint32, tableName string) Key {
	k := TableAPIAccessAll(projectRef).With(strconv.FormatUint(uint64(relationID), 10))
	if tableName != "" {
		k = k.With(tableName)
	}
	return k
}

// Execution keys used when running statements through the SQL endpoint.
var (
	TableAPIAccessGrant     = New("table-api-access", "grant")
	TableAPIAccessRevoke    = New("table-api-access", "revoke")
	BucketLiveTupleEstimate = New("live-tuple-estimate", "storage.buckets")
	BucketsLargestSizeLimit = New("buckets-with-largest-size-limit")
	TableCreate             = New("table", "create")
	RelationLookup          = New("table", "lookup")
)
