package domain

import (
	"strings"
	"time"
)

// Role enumerates the access roles of the tracker.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleTester    Role = "Tester"
	RoleDeveloper Role = "Developer"

	// legacyDeveloperRole is the value older clients send for developers.
	legacyDeveloperRole = "User"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleTester, RoleDeveloper}

// ParseRole resolves a wire value into a Role.
func ParseRole(raw string) (Role, bool) {
	switch strings.TrimSpace(raw) {
	case string(RoleAdmin):
		return RoleAdmin, true
	case string(RoleTester):
		return RoleTester, true
	case string(RoleDeveloper), legacyDeveloperRole:
		return RoleDeveloper, true
	default:
		return "", false
	}
}

// User is an account that can sign in to the tracker.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
