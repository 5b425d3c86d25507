package toolbridge

import "slices"

// PermissionFilter restricts which of a source's tools an Executor may run.
// An empty list counts as absent.
type PermissionFilter struct {
	Allow []string
	Deny  []string
}

// Permits reports whether name passes the filter: it must be in Allow when
// Allow is set and must not be in Deny when Deny is set.
func (f PermissionFilter) Permits(name string) bool {
	if len(f.Allow) > 0 && !slices.Contains(f.Allow, name) {
		return false
	}
	if len(f.Deny) > 0 && slices.Contains(f.Deny, name) {
		return false
	}
	return true
}

// Apply returns the names that pass the filter, preserving order.
func (f PermissionFilter) Apply(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if f.Permits(n) {
			out = append(out, n)
		}
	}
	return out
}
