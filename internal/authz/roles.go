package authz

import "sort"

// Roles is a set of role names. Membership is exact and case-sensitive.
type Roles map[string]struct{}

// NewRoles builds a role set from the given names. Names are kept verbatim; the empty
// string is not a role name and is skipped, so no principal can hold or require it.
func NewRoles(names ...string) Roles {
	set := make(Roles, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the role.
func (r Roles) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Len returns the number of roles held.
func (r Roles) Len() int {
	return len(r)
}

// Intersects reports whether both sets share at least one role.
func (r Roles) Intersects(other Roles) bool {
	small, large := r, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for name := range small {
		if _, ok := large[name]; ok {
			return true
		}
	}
	return false
}

// Names returns the role names in sorted order.
func (r Roles) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy. Cloning a nil set yields an empty set.
func (r Roles) Clone() Roles {
	out := make(Roles, len(r))
	for name := range r {
		out[name] = struct{}{}
	}
	return out
}
