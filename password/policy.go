package password

import (
	"fmt"
	"unicode"
)

// Policy describes the structural rules a candidate password must satisfy.
// The zero value accepts everything; use DefaultPolicy for sane rules.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy is the policy applied when the engine configuration leaves
// the section empty.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:    10,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// Validate returns a human-readable description of every rule the candidate
// violates. An empty slice means the password is acceptable.
func (p Policy) Validate(candidate string) []string {
	var violations []string

	if p.MinLength > 0 && len(candidate) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain a special character")
	}

	return violations
}
