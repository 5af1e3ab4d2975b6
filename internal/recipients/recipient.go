package recipients

import (
	"context"
	"errors"
	"strings"
)

// Type tags which external directory a recipient id belongs to.
type Type string

const (
	TypeClient    Type = "client"
	TypeJobseeker Type = "jobseeker"
)

var ErrNotFound = errors.New("recipient not found")

// Types lists every supported recipient type.
func Types() []Type {
	return []Type{TypeClient, TypeJobseeker}
}

// ParseType normalizes raw and reports whether it names a supported type.
func ParseType(raw string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Types() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Recipient is the contact view of a client or jobseeker.
type Recipient struct {
	Type        Type
	ID          string
	DisplayName string
	Email       string
}

// Resolver maps a recipient reference to a display name and contact address.
// Unknown ids return ErrNotFound.
type Resolver interface {
	Resolve(ctx context.Context, t Type, id string) (Recipient, error)
}
