package model

// Permission represents a string code for a specific administrative action.
type Permission string

const (
	// PermissionSessionsRead allows listing assessment sessions.
	PermissionSessionsRead Permission = "sessions:read"

	// PermissionSessionsWrite allows creating sessions and generating their question sets.
	PermissionSessionsWrite Permission = "sessions:write"
)

// PermissionSystemRead allows reading worker queue and runtime statistics.
const PermissionSystemRead Permission = "system:read"
