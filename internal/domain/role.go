package domain

import (
	"errors"
	"strings"
)

// Role is the privilege level of a member inside a room.
type Role string

const (
	RoleUser  Role = "user"
	RoleHost  Role = "host"
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

var ErrInvalidRole = errors.New("invalid role")

// ParseRole maps a wire value to a Role. An empty value means RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleHost:
		return RoleHost, nil
	case RoleOwner:
		return RoleOwner, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", ErrInvalidRole
}

func (r Role) String() string { return string(r) }
