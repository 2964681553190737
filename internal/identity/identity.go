package identity

import (
	"slices"
	"strings"
)

// Role distinguishes the operator from end users.
type Role string

const (
	RoleOperator Role = "operator"
	RolePeer     Role = "peer"
)

const (
	DefaultOperatorID = "admin"
	DefaultSentinel   = "-1"
	DefaultName       = "admin"
)

// Identity is a resolved participant.
type Identity struct {
	ID   string
	Role Role
}

// Normalizer maps every operator alias onto one canonical operator id.
// The zero value is not usable; build one with New or Default.
type Normalizer struct {
	operator string
	aliases  map[string]struct{}
}

// New creates a normalizer for the given canonical operator id. Empty
// aliases are ignored.
func New(operatorID string, aliases ...string) Normalizer {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		operatorID = DefaultOperatorID
	}
	n := Normalizer{
		operator: operatorID,
		aliases:  map[string]struct{}{operatorID: {}},
	}
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a != "" {
			n.aliases[a] = struct{}{}
		}
	}
	return n
}

// Default returns the normalizer for the built-in operator aliases.
func Default() Normalizer {
	return New(DefaultOperatorID, DefaultSentinel, DefaultName)
}

// Operator returns the canonical operator id.
func (n Normalizer) Operator() string {
	return n.operator
}

// Canonical returns the canonical form of id. Operator aliases collapse to
// the operator id; everything else passes through trimmed.
func (n Normalizer) Canonical(id string) string {
	id = strings.TrimSpace(id)
	if _, ok := n.aliases[id]; ok {
		return n.operator
	}
	return id
}

// Aliases returns every id that canonicalizes to the operator, sorted.
func (n Normalizer) Aliases() []string {
	out := make([]string, 0, len(n.aliases))
	for a := range n.aliases {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// IsOperator reports whether id is the operator under any alias.
func (n Normalizer) IsOperator(id string) bool {
	return n.Canonical(id) == n.operator
}

// Resolve canonicalizes id and assigns its role.
func (n Normalizer) Resolve(id string) Identity {
	c := n.Canonical(id)
	if c == n.operator {
		return Identity{ID: c, Role: RoleOperator}
	}
	return Identity{ID: c, Role: RolePeer}
}

// Counterpart returns the non-operator side of a sender/receiver pair. ok is
// false when neither or both sides are the operator.
func (n Normalizer) Counterpart(senderID, receiverID string) (string, bool) {
	s, r := n.Canonical(senderID), n.Canonical(receiverID)
	switch {
	case s == n.operator && r != n.operator:
		return r, true
	case r == n.operator && s != n.operator:
		return s, true
	default:
		return "", false
	}
}
