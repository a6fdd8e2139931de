package auth

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/authority/internal/policy"
)

// Predicates is the catalogue of rules a policy file may reference.
func Predicates() policy.Predicates[*User] {
	return policy.Predicates[*User]{
		"is_self":   isSelf,
		"is_active": isActive,
	}
}

// isSelf grants when the first argument names the user: an int64 ID, a decimal string, or
// a request whose "id" route parameter matches.
func isSelf(user *User, args ...any) bool {
	if user == nil || len(args) == 0 {
		return false
	}
	switch v := args[0].(type) {
	case int64:
		return v == user.ID
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return err == nil && id == user.ID
	case *http.Request:
		id, err := strconv.ParseInt(chi.URLParam(v, "id"), 10, 64)
		return err == nil && id == user.ID
	}
	return false
}

func isActive(user *User, _ ...any) bool {
	return user != nil && user.IsActive
}
