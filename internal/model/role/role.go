package role

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a speaker tag is not one of the workshop roles.
var ErrUnknownRole = errors.New("unknown role")

// Role identifies a workshop participant category.
type Role string

const (
	Facilitator Role = "facilitator"
	HR          Role = "hr"
	Strategy    Role = "strategy"
)

// All returns the fixed roles in their canonical order.
func All() []Role {
	return []Role{Facilitator, HR, Strategy}
}

// Parse matches name case-insensitively against the known roles.
func Parse(name string) (Role, error) {
	normalized := Role(strings.ToLower(strings.TrimSpace(name)))
	for _, r := range All() {
		if r == normalized {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// Describe returns a short description of what the role contributes to a workshop.
func (r Role) Describe() string {
	switch r {
	case Facilitator:
		return "the facilitator steering the workshop"
	case HR:
		return "the HR team, speaking for people policies and workflows"
	case Strategy:
		return "the strategy team, speaking for company direction and priorities"
	default:
		return string(r)
	}
}
