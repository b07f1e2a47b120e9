package domain

// Member represents a connection's presence meta inside one room.
// No transport or lifecycle logic here.
type Member struct {
	User   *User
	Avatar string
	Role   Role
	Status string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, avatar string, role Role) *Member {
	if role == "" {
		role = RoleUser
	}
	return &Member{User: user, Avatar: avatar, Role: role}
}

func (m *Member) Username() string {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.Username
}
