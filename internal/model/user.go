package model

import "strings"

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Matches reports whether identifier names this role, by exact id or by
// case-insensitive name.
func (r Role) Matches(identifier string) bool {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false
	}
	return r.ID == identifier || strings.EqualFold(r.Name, identifier)
}

type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Names    string `json:"names"`
	Surnames string `json:"surnames"`
	Roles    []Role `json:"roles"`
}

func (u *UserProfile) HasRoles() bool {
	return u != nil && len(u.Roles) > 0
}

// FindRole returns the user's role matching identifier by id or
// case-insensitive name.
func (u *UserProfile) FindRole(identifier string) (Role, bool) {
	if u == nil {
		return Role{}, false
	}
	for _, role := range u.Roles {
		if role.Matches(identifier) {
			return role, true
		}
	}
	return Role{}, false
}

// FindRoleByName only matches on the case-insensitive name.
func (u *UserProfile) FindRoleByName(name string) (Role, bool) {
	if u == nil {
		return Role{}, false
	}
	name = strings.TrimSpace(name)
	for _, role := range u.Roles {
		if name != "" && strings.EqualFold(role.Name, name) {
			return role, true
		}
	}
	return Role{}, false
}

func (u *UserProfile) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.Names + " " + u.Surnames)
}

// Clone returns a deep copy so callers cannot mutate controller state.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = append([]Role(nil), u.Roles...)
	return &out
}
