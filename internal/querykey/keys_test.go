package querykey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_HasPrefix(t *testing.T) {
	tests := []struct {
		name   string
		key    Key
		prefix Key
		want   bool
	}{
		{"empty prefix", New("a", "b"), New(), true},
		{"exact", New("a", "b"), New("a", "b"), true},
		{"leading", New("a", "b", "c"), New("a", "b"), true},
		{"longer prefix", New("a"), New("a", "b"), false},
		{"different part", New("a", "x"), New("a", "b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.HasPrefix(tt.prefix))
		})
	}
}

func TestKey_Overlaps(t *testing.T) {
	assert.True(t, New("a").Overlaps(New("a", "b")))
	assert.True(t, New("a", "b").Overlaps(New("a")))
	assert.False(t, New("a", "c").Overlaps(New("a", "b")))
}

func TestKey_WithDoesNotAlias(t *testing.T) {
	base := make(Key, 1, 8)
	base[0] = "root"

	a := base.With("a")
	b := base.With("b")

	assert.Equal(t, "root/a", a.String())
	assert.Equal(t, "root/b", b.String())
}

func TestProjectKeys(t *testing.T) {
	assert.Equal(t, "projects/abc/query/live-tuple-estimate/storage.buckets",
		SQLQuery("abc", BucketLiveTupleEstimate...).String())
	assert.Equal(t, "projects/abc/privileges/tables", TablePrivileges("abc").String())
	assert.Equal(t, "projects/abc/privileges/table-api-access/42", TableAPIAccess("abc", 42, "").String())
	assert.Equal(t, "projects/abc/privileges/table-api-access/42/users", TableAPIAccess("abc", 42, "users").String())
}

func TestTableAPIAccess_PrefixesNamedVariant(t *testing.T) {
	open := TableAPIAccess("abc", 42, "")
	named := TableAPIAccess("abc", 42, "users")

	assert.True(t, named.HasPrefix(open))
	assert.True(t, named.HasPrefix(TableAPIAccessAll("abc")))
	assert.False(t, TableAPIAccess("abc", 43, "").Overlaps(open))
	assert.False(t, TablePrivileges("abc").Overlaps(open))
}

func TestKeyID_SlashInTableName(t *testing.T) {
	slashed := TableAPIAccess("abc", 42, "a/b")
	nested := TableAPIAccess("abc", 42, "a").With("b")

	assert.Equal(t, slashed.String(), nested.String())
	assert.NotEqual(t, slashed.ID(), nested.ID())
	assert.Equal(t, slashed.ID(), TableAPIAccess("abc", 42, "a/b").ID())
}
