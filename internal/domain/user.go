package domain

import "time"

// UserRole distinguishes requesters from staff eligible for assignment.
type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleModerator UserRole = "moderator"
	UserRoleAdmin     UserRole = "admin"
)

// AssignableRoles are the roles that make up the assignee pool.
var AssignableRoles = []UserRole{UserRoleModerator, UserRoleAdmin}

// User is an account; moderators and admins double as assignees.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	Skills    []string  `json:"skills,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
