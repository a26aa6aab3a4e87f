// Package role validates and switches among a user's assigned roles and
// answers permission checks for the active one.
package role

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"go-academic-portal/internal/model"
)

// PermissionAll grants every permission.
const PermissionAll = "all"

// Permissions maps a lower-case role name to the permissions it grants.
type Permissions map[string][]string

// DefaultPermissions is the portal's static role table.
var DefaultPermissions = Permissions{
	"administrador": {PermissionAll},
	"administrator": {PermissionAll},
	"admin":         {PermissionAll},
	"docente":       {"manage_courses", "view_students", "grade_assignments", "create_assignments"},
	"estudiante":    {"view_courses", "submit_assignments", "view_grades", "view_progress"},
}

// IsAdminRole reports whether name is one of the administrator role names.
func IsAdminRole(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "administrador", "administrator", "admin":
		return true
	default:
		return false
	}
}

// Allows reports whether roleName grants permission.
func (p Permissions) Allows(roleName string, permission string) bool {
	granted := p[strings.ToLower(strings.TrimSpace(roleName))]
	return slices.Contains(granted, PermissionAll) || slices.Contains(granted, permission)
}

// Persister stores the selected role name between runs.
type Persister interface {
	SaveRole(name string) error
	LoadRole() string
}

type Selector struct {
	mu          sync.Mutex
	store       Persister
	permissions Permissions
	logger      *slog.Logger
	current     string
}

type Option func(*Selector)

func WithPermissions(p Permissions) Option {
	return func(s *Selector) {
		if p != nil {
			s.permissions = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		s.logger = logger
	}
}

func NewSelector(store Persister, opts ...Option) *Selector {
	s := &Selector{
		store:       store,
		permissions: DefaultPermissions,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Switch makes identifier the active role when the user holds it, matched
// by exact id or case-insensitive name. It returns false and changes
// nothing otherwise.
func (s *Selector) Switch(user *model.UserProfile, identifier string) bool {
	role, ok := user.FindRole(identifier)
	if !ok {
		s.logger.Warn("role switch rejected", "role", identifier)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(role.Name)
	return true
}

// Resolve returns the active role: the in-memory selection if the user
// still holds it, then the persisted selection, then the user's first role.
// The result is persisted. It returns "" for a user without roles.
func (s *Selector) Resolve(user *model.UserProfile) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(user)
}

func (s *Selector) resolveLocked(user *model.UserProfile) string {
	if !user.HasRoles() {
		return ""
	}

	if s.current != "" {
		if role, ok := user.FindRoleByName(s.current); ok {
			s.current = role.Name
			return s.current
		}
	}

	if saved := s.store.LoadRole(); saved != "" {
		if role, ok := user.FindRoleByName(saved); ok {
			s.setLocked(role.Name)
			return s.current
		}
	}

	s.setLocked(user.Roles[0].Name)
	return s.current
}

func (s *Selector) setLocked(name string) {
	s.current = name
	if err := s.store.SaveRole(name); err != nil {
		s.logger.Error("failed to persist role", "role", name, "error", err)
	}
}

// HasRole reports whether the user holds a role named name, ignoring case.
func (s *Selector) HasRole(user *model.UserProfile, name string) bool {
	_, ok := user.FindRoleByName(name)
	return ok
}

// HasPermission checks permission against the resolved active role.
func (s *Selector) HasPermission(user *model.UserProfile, permission string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.resolveLocked(user)
	if current == "" {
		return false
	}
	return s.permissions.Allows(current, permission)
}

func (s *Selector) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset forgets the in-memory selection. The persisted value is cleared
// with the rest of the token record.
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ""
}
