package auth

import (
	"strings"
)

// Guard evaluates whether a caller identity may perform a privileged or
// owner-scoped operation. The owner identity is fixed at construction
// time from deployment configuration.
type Guard struct {
	owner string
}

// NewGuard creates a guard for the given owner identity.
func NewGuard(owner string) *Guard {
	return &Guard{owner: strings.ToLower(owner)}
}

// Owner returns the configured owner identity.
func (g *Guard) Owner() string {
	return g.owner
}

// IsOwner reports whether caller is the owner identity.
func (g *Guard) IsOwner(caller string) bool {
	return strings.EqualFold(caller, g.owner)
}

// RequireOwner fails with ErrUnauthorized unless caller is the owner.
func (g *Guard) RequireOwner(caller string) error {
	if !g.IsOwner(caller) {
		return ErrUnauthorized
	}
	return nil
}

// RequireAnyOf fails with ErrUnauthorized unless caller is a member of
// the allowed set. Comparison is case-insensitive; identities are
// normalized lowercase at the boundary.
func (g *Guard) RequireAnyOf(caller string, allowed ...string) error {
	for _, a := range allowed {
		if a != "" && strings.EqualFold(caller, a) {
			return nil
		}
	}
	return ErrUnauthorized
}
