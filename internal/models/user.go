package models

// Roles known to the messaging policy. Any other role cannot initiate
// messaging.
const (
	RoleSuperAdmin     = "super_admin"
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleContractor     = "contractor"
)

// User is the read-only identity record served by the directory.
type User struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Role     string `db:"role" json:"role"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Session is an authenticated caller as resolved from a bearer token.
type Session struct {
	UserID int    `db:"user_id"`
	Role   string `db:"role"`
}
