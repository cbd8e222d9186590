package domain

type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleVendor  Role = "VENDOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleVendor:
		return true
	}
	return false
}

// Actor identifies the caller of a lifecycle operation. Authentication happens upstream.
type Actor struct {
	UserID     string
	Role       Role
	BusinessID string
	VendorID   string
}

// SystemActor is used for entries written without a human caller.
var SystemActor = Actor{}
