// Package models defines the records held by the MTMS state store and
// persisted in snapshots.
package models

import "time"

// Role is the fixed capability set assigned to a user at registration.
type Role string

const (
	// RoleSubmitter files transfer requests.
	RoleSubmitter Role = "user"
	// RoleTreasury confirms (and reverts) transfer arrival.
	RoleTreasury Role = "treasury"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r == RoleSubmitter || r == RoleTreasury
}

// ParseRole accepts the persisted values as well as the descriptive names
// used on the command line.
func ParseRole(s string) (Role, bool) {
	switch s {
	case string(RoleSubmitter), "submitter":
		return RoleSubmitter, true
	case string(RoleTreasury):
		return RoleTreasury, true
	default:
		return "", false
	}
}

// User is a registered account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// Credential is the encoded one-way hash of the password. It is only
	// populated inside the store and in snapshots.
	Credential string    `json:"credential,omitempty"`
	FullName   string    `json:"fullName"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Public returns a copy of u without credential material.
func (u User) Public() User {
	u.Credential = ""
	return u
}
