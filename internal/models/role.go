package models

import (
	"errors"
	"strings"
)

// Role is the closed set of account roles. The numeric ids are part of the
// stored representation and must not be reordered.
type Role string

const (
	RoleCEO     Role = "ceo"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
	RoleDriver  Role = "driver"
)

var roleNums = map[Role]int{
	RoleCEO:     1,
	RoleManager: 2,
	RoleAdmin:   3,
	RoleDriver:  4,
}

var numRoles = map[int]Role{
	1: RoleCEO,
	2: RoleManager,
	3: RoleAdmin,
	4: RoleDriver,
}

var ErrInvalidRole = errors.New("invalid role")

// ParseRole normalizes a role name. An empty name defaults to driver.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if r == "" {
		return RoleDriver, nil
	}
	if _, ok := roleNums[r]; !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Num returns the stable numeric id for the role (0 for unknown roles).
func (r Role) Num() int {
	return roleNums[r]
}

// RoleFromNum is the inverse of Num.
func RoleFromNum(n int) (Role, error) {
	r, ok := numRoles[n]
	if !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Unrestricted reports whether the role sees the whole fleet.
func (r Role) Unrestricted() bool {
	return r == RoleCEO || r == RoleAdmin
}

func (r Role) Valid() bool {
	_, ok := roleNums[r]
	return ok
}
