package notify

import (
	"strings"

	"github.com/samber/lo"
)

// TargetKind selects how a notification is addressed.
type TargetKind string

const (
	KindDirect     TargetKind = "direct"
	KindMulti      TargetKind = "multi"
	KindByIdentity TargetKind = "identity"
)

// Target addresses a push notification. Exactly one of Token, Tokens or
// Identity is set, according to Kind.
type Target struct {
	Kind     TargetKind `json:"kind"`
	Token    string     `json:"token,omitempty"`
	Tokens   []string   `json:"tokens,omitempty"`
	Identity string     `json:"identity,omitempty"`
}

// Direct addresses a single device token.
func Direct(token string) Target {
	return Target{Kind: KindDirect, Token: token}
}

// Multi addresses several device tokens.
func Multi(tokens []string) Target {
	return Target{Kind: KindMulti, Tokens: tokens}
}

// ByIdentity leaves token lookup to the push gateway.
func ByIdentity(id string) Target {
	return Target{Kind: KindByIdentity, Identity: id}
}

// Resolve picks the narrowest target for the known tokens of id.
func Resolve(tokens []string, id string) Target {
	clean := lo.Uniq(lo.Compact(lo.Map(tokens, func(t string, _ int) string {
		return strings.TrimSpace(t)
	})))
	switch len(clean) {
	case 0:
		return ByIdentity(id)
	case 1:
		return Direct(clean[0])
	default:
		return Multi(clean)
	}
}
