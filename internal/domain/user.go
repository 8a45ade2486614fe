package domain

type Role string

const (
	RoleDonor     Role = "donor"
	RoleOrphanage Role = "orphanage"
	RoleAdmin     Role = "admin"
	// RoleSystem is never issued to users; it drives time-based expiry.
	RoleSystem Role = "system"
)

// ParseRole accepts only roles a user can hold.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleDonor, RoleOrphanage, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	Organization string `json:"organization,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// Actor is the authenticated caller of a lifecycle or query operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}

func (u *User) Actor() Actor {
	name := u.Name
	if u.Organization != "" {
		name = u.Organization
	}
	return Actor{ID: u.ID, Name: name, Role: u.Role}
}

var SystemActor = Actor{ID: "system", Name: "system", Role: RoleSystem}
