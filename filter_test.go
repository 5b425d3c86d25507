package toolbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionFilter_Permits(t *testing.T) {
	tests := []struct {
		name   string
		filter PermissionFilter
		tool   string
		want   bool
	}{
		{"no lists", PermissionFilter{}, "any", true},
		{"allowed", PermissionFilter{Allow: []string{"a", "b"}}, "a", true},
		{"not allowed", PermissionFilter{Allow: []string{"a", "b"}}, "c", false},
		{"denied", PermissionFilter{Deny: []string{"rm"}}, "rm", false},
		{"not denied", PermissionFilter{Deny: []string{"rm"}}, "ls", true},
		{"allowed and denied", PermissionFilter{Allow: []string{"rm"}, Deny: []string{"rm"}}, "rm", false},
		{"empty allow is absent", PermissionFilter{Allow: []string{}}, "x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Permits(tt.tool))
		})
	}
}

func TestPermissionFilter_Apply(t *testing.T) {
	f := PermissionFilter{Deny: []string{"b"}}
	assert.Equal(t, []string{"a", "c"}, f.Apply([]string{"a", "b", "c"}))
	assert.Empty(t, f.Apply(nil))
}
