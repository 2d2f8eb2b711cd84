package domain

// Role is a participant's hidden role category.
type Role string

const (
	// RoleCollaborator works toward the prophecy ending.
	RoleCollaborator Role = "collaborator"
	// RoleSaboteur works toward the doomsday ending.
	RoleSaboteur Role = "saboteur"
	// RoleRogue pursues a private goal path and wins alone.
	RoleRogue Role = "rogue"
)

// KnownRole reports whether value names a defined role category.
func KnownRole(value Role) bool {
	switch value {
	case RoleCollaborator, RoleSaboteur, RoleRogue:
		return true
	}
	return false
}
