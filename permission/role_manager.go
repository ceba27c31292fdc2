package permission

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrRoleManagerFrozen is returned when registering into a frozen manager.
	ErrRoleManagerFrozen = errors.New("role manager frozen")
	// ErrRoleEmpty is returned for an empty role name.
	ErrRoleEmpty = errors.New("role name empty")
	// ErrLandingEmpty is returned for a role registered without a landing route.
	ErrLandingEmpty = errors.New("landing route empty")
	// ErrRoleExists is returned when a role is registered twice.
	ErrRoleExists = errors.New("role already registered")
)

// RoleManager maps each known role to the route it lands on.
//
// RoleManager instances are intended to be configured during initialization and then
// frozen; lookups are safe for concurrent use.
type RoleManager struct {
	mu      sync.RWMutex
	landing map[Role]string
	frozen  bool
}

// NewRoleManager returns an empty, unfrozen manager.
func NewRoleManager() *RoleManager {
	return &RoleManager{
		landing: make(map[Role]string),
	}
}

// DefaultRoleManager returns a frozen manager holding the three shop roles.
func DefaultRoleManager() *RoleManager {
	rm := NewRoleManager()
	_ = rm.RegisterRole(RoleAdmin, AdminLanding)
	_ = rm.RegisterRole(RoleSuperAdmin, AdminLanding)
	_ = rm.RegisterRole(RoleUser, UserLanding)
	rm.Freeze()
	return rm
}

// RegisterRole adds role with its landing route.
func (rm *RoleManager) RegisterRole(role Role, landing string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrRoleManagerFrozen
	}
	if strings.TrimSpace(string(role)) == "" {
		return ErrRoleEmpty
	}
	if strings.TrimSpace(landing) == "" {
		return ErrLandingEmpty
	}
	if _, exists := rm.landing[role]; exists {
		return ErrRoleExists
	}

	rm.landing[role] = landing
	return nil
}

// Landing returns the landing route for role.
func (rm *RoleManager) Landing(role Role) (string, bool) {
	if rm == nil {
		return "", false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	route, ok := rm.landing[role]
	return route, ok
}

// Has reports whether role is registered.
func (rm *RoleManager) Has(role Role) bool {
	_, ok := rm.Landing(role)
	return ok
}

// Roles returns the registered roles in lexical order.
func (rm *RoleManager) Roles() []Role {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]Role, 0, len(rm.landing))
	for r := range rm.landing {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Freeze rejects any further registration.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Frozen reports whether Freeze was called.
func (rm *RoleManager) Frozen() bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.frozen
}
