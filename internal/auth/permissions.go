package auth

// Permission actions. "manage" conveys broad authority by convention only;
// no check ever expands it into the other actions.
const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionManage = "manage"
)

// Well-known permission names referenced by handlers.
const (
	PermissionUserCreate = "user:create"
	PermissionUserRead   = "user:read"
	PermissionUserUpdate = "user:update"
	PermissionUserDelete = "user:delete"

	PermissionDocumentCreate = "document:create"
	PermissionDocumentRead   = "document:read"
	PermissionDocumentUpdate = "document:update"
	PermissionDocumentDelete = "document:delete"

	PermissionRoleManage = "role:manage"
)

// BuiltinPermissions is the seed catalog ensured at startup.
var BuiltinPermissions = []Permission{
	{Name: PermissionUserCreate, Resource: "user", Action: ActionCreate, Description: "Create new users"},
	{Name: PermissionUserRead, Resource: "user", Action: ActionRead, Description: "View user information"},
	{Name: PermissionUserUpdate, Resource: "user", Action: ActionUpdate, Description: "Update user information"},
	{Name: PermissionUserDelete, Resource: "user", Action: ActionDelete, Description: "Delete users"},
	{Name: PermissionDocumentCreate, Resource: "document", Action: ActionCreate, Description: "Upload new documents"},
	{Name: PermissionDocumentRead, Resource: "document", Action: ActionRead, Description: "View documents"},
	{Name: PermissionDocumentUpdate, Resource: "document", Action: ActionUpdate, Description: "Update document information"},
	{Name: PermissionDocumentDelete, Resource: "document", Action: ActionDelete, Description: "Delete documents"},
	{Name: PermissionRoleManage, Resource: "role", Action: ActionManage, Description: "Manage roles and permissions"},
}

// ValidAction reports whether the action belongs to the permission enum.
func ValidAction(action string) bool {
	switch action {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	default:
		return false
	}
}
