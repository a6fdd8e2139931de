package authz

// AnonymousID identifies the principal bound before authentication.
const AnonymousID int64 = -1

// Principal is the actor visible to an Authority for one request.
type Principal[U any] struct {
	ID    int64
	User  U
	Roles Roles
}

// IsAnonymous reports whether no identity has been bound.
func (p Principal[U]) IsAnonymous() bool {
	return p.ID == AnonymousID
}

func anonymous[U any]() Principal[U] {
	var zero U
	return Principal[U]{ID: AnonymousID, User: zero, Roles: Roles{}}
}
