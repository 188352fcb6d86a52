package auth

// Permission represents a named capability in the API.
type Permission string

// Permission constants.
const (
	PermEntityRead    Permission = "entity:read"
	PermEntityOperate Permission = "entity:operate"
	PermEntryManage   Permission = "entry:manage"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermEntityRead,
	},
	RoleOperator: {
		PermEntityRead,
		PermEntityOperate,
	},
	RoleAdmin: {
		PermEntityRead,
		PermEntityOperate,
		PermEntryManage,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}
