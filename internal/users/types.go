package users

import "time"

// Role values; privileged handlers require manager or admin.
const (
	RoleStaff   = "staff"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// User is a registered bot user keyed by the opaque platform user id.
type User struct {
	ID        string
	TGUserID  string
	TGChatID  string
	Name      string
	Role      string
	Position  string
	OrgID     string
	OrgName   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Privileged reports whether the role may run admin surface actions.
func (u User) Privileged() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}

// CreateParams are the fields set at registration.
type CreateParams struct {
	TGUserID string
	TGChatID string
	Name     string
	Role     string
	Position string
	OrgID    string
}
