package shared

// Privileges guarding the authority's own HTTP surface.
const (
	PermPrivilegesView = "authz.privileges.view"

	PermRolesView = "authz.roles.view"
	PermRolesEdit = "authz.roles.edit"
)

// CoreGrants maps each built-in privilege to the roles granting it.
func CoreGrants() map[string][]string {
	return map[string][]string{
		PermPrivilegesView: {RoleAdmin, RoleAuditor},
		PermRolesView:      {RoleAdmin, RoleAuditor},
		PermRolesEdit:      {RoleAdmin},
	}
}

// RoleAdmin is granted every built-in privilege.
const RoleAdmin = "admin"

// RoleAuditor may inspect privileges and roles but not change assignments.
const RoleAuditor = "auditor"
