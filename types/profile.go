package types

import "time"

// AdminPermission scopes what an admin may do.
type AdminPermission string

const (
	PermissionAll   AdminPermission = "all"
	PermissionRead  AdminPermission = "read"
	PermissionWrite AdminPermission = "write"
)

// Admin is the admin role profile, one-to-one with its backing account.
type Admin struct {
	ID           string            `json:"id" db:"id"`
	AccountID    string            `json:"sessionClientId" db:"account_id"`
	AdminTitle   string            `json:"adminTitle" db:"admin_title"`
	Permissions  []AdminPermission `json:"permissions" db:"permissions"`
	IsSuperAdmin bool              `json:"isSuperAdmin" db:"is_super_admin"`
	CreatedAt    time.Time         `json:"createdAt" db:"created_at"`

	// Account is populated on admin lookups so handlers can return the
	// owning identity alongside the profile.
	Account *Account `json:"sessionClient,omitempty" db:"-"`
}

// Employee is the employee role profile.
type Employee struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"sessionClientId" db:"account_id"`
	FullName  string    `json:"fullName" db:"full_name"`

	// EmployeeID is the unique human-readable badge identifier used by
	// the kiosk flow.
	EmployeeID string    `json:"employeeId" db:"employee_id"`
	Department string    `json:"department" db:"department"`
	Title      string    `json:"title" db:"title"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Visitor is the visitor role profile.
type Visitor struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"sessionClientId" db:"account_id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
