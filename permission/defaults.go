package permission

// Bootstrap permission names.
const (
	ReadDocuments   = "READ_DOCUMENTS"
	WriteDocuments  = "WRITE_DOCUMENTS"
	DeleteDocuments = "DELETE_DOCUMENTS"
	ManageUsers     = "MANAGE_USERS"
	AssignRoles     = "ASSIGN_ROLES"
)

// Bootstrap resource-specific role names.
const (
	RoleDocumentViewer = "DOCUMENT_VIEWER"
	RoleDocumentEditor = "DOCUMENT_EDITOR"
)

// Resource classes and actions used by the bootstrap permissions.
const (
	ResourceDocument = "DOCUMENT"
	ResourceUser     = "USER"
	ResourceRole     = "ROLE"

	ActionRead   = "READ"
	ActionWrite  = "WRITE"
	ActionDelete = "DELETE"
	ActionManage = "MANAGE"
	ActionAssign = "ASSIGN"
)

// DefaultCatalog returns an unfrozen catalog holding the standard roles and
// permissions. Callers may register more before freezing it.
func DefaultCatalog() *Catalog {
	c := NewCatalog()

	perms := []Permission{
		{Name: ReadDocuments, Resource: ResourceDocument, Action: ActionRead, Description: "Read document content"},
		{Name: WriteDocuments, Resource: ResourceDocument, Action: ActionWrite, Description: "Create and edit documents"},
		{Name: DeleteDocuments, Resource: ResourceDocument, Action: ActionDelete, Description: "Delete documents"},
		{Name: ManageUsers, Resource: ResourceUser, Action: ActionManage, Description: "Manage user accounts"},
		{Name: AssignRoles, Resource: ResourceRole, Action: ActionAssign, Description: "Assign roles to users"},
	}
	all := make([]string, 0, len(perms))
	for _, p := range perms {
		mustRegister(c.RegisterPermission(p))
		all = append(all, p.Name)
	}

	mustRegister(c.RegisterRole(Role{Name: RoleAdmin, Type: Organizational, Description: "Administrator with full system access"}, all...))
	mustRegister(c.RegisterRole(Role{Name: RoleManager, Type: Organizational, Description: "Manager with elevated privileges"}, ReadDocuments, WriteDocuments))
	mustRegister(c.RegisterRole(Role{Name: RoleUser, Type: Organizational, Description: "Standard user with basic access"}))
	mustRegister(c.RegisterRole(Role{Name: RoleDocumentViewer, Type: ResourceSpecific, Description: "Can view documents"}, ReadDocuments))
	mustRegister(c.RegisterRole(Role{Name: RoleDocumentEditor, Type: ResourceSpecific, Description: "Can edit documents"}, ReadDocuments, WriteDocuments))

	return c
}

func mustRegister(err error) {
	if err != nil {
		panic("permission: default catalog: " + err.Error())
	}
}
