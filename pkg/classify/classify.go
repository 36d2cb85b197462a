// Package classify derives a node's role and organization from the raw
// metadata returned by its RPC endpoints.
//
// The exact conventions vary between operators, so the classifier is an
// ordered rule list rather than a hard-coded switch: callers can prepend
// or replace rules once they have confirmed the conventions of a live
// network. Classification is pure and total; any input yields a role
// and an organization, never an error.
package classify

import (
	"strings"
)

// Role is the functional classification of a node.
type Role string

const (
	RoleValidator Role = "validator"
	RoleSentry    Role = "sentry"
	RoleObserver  Role = "observer"
	RoleSeed      Role = "seed"
	RoleUnknown   Role = "unknown"
)

// OrgUnknown is the organization assigned when no recognizable naming
// pattern is present in the moniker.
const OrgUnknown = "Unknown"

// Hints carries the metadata fields a classification rule may inspect.
// Fields a node did not report stay at their zero value.
type Hints struct {
	Moniker     string // display name from node_info
	VotingPower int64  // from status validator_info; >0 means in the validator set
	SeedMode    bool   // peer-exchange seed flag, when advertised
}

// Rule inspects hints and either claims a role or passes.
type Rule func(Hints) (Role, bool)

// Classifier evaluates rules in order; the first rule to claim a role
// wins. An exhausted rule list yields RoleUnknown.
type Classifier struct {
	Rules []Rule
}

// Default returns a classifier with the standard rule order:
// validator-set membership, then moniker naming conventions, then
// peer-exchange flags.
func Default() Classifier {
	return Classifier{Rules: []Rule{
		ValidatorSetRule,
		MonikerRule,
		PeerExchangeRule,
	}}
}

// Classify derives the role and organization for a node.
func (c Classifier) Classify(h Hints) (Role, string) {
	role := RoleUnknown
	for _, rule := range c.Rules {
		if r, ok := rule(h); ok {
			role = r
			break
		}
	}
	return role, Organization(h.Moniker)
}

// ValidatorSetRule claims RoleValidator for nodes with voting power,
// i.e. explicit validator-set membership.
func ValidatorSetRule(h Hints) (Role, bool) {
	if h.VotingPower > 0 {
		return RoleValidator, true
	}
	return RoleUnknown, false
}

// MonikerRule applies the DCL operator naming conventions:
// "-vn-"/"-vn"/"validator" for validators, "-sn-"/"sentry" for
// sentries, "-on-"/"observer" for observers, "seed" for seeds.
func MonikerRule(h Hints) (Role, bool) {
	m := strings.ToLower(h.Moniker)
	switch {
	case strings.Contains(m, "-vn-") || strings.HasSuffix(m, "-vn") || strings.Contains(m, "validator"):
		return RoleValidator, true
	case strings.Contains(m, "-sn-") || strings.Contains(m, "sentry"):
		return RoleSentry, true
	case strings.Contains(m, "-on-") || strings.Contains(m, "observer"):
		return RoleObserver, true
	case strings.Contains(m, "seed"):
		return RoleSeed, true
	}
	return RoleUnknown, false
}

// PeerExchangeRule claims RoleSeed for nodes advertising seed mode.
func PeerExchangeRule(h Hints) (Role, bool) {
	if h.SeedMode {
		return RoleSeed, true
	}
	return RoleUnknown, false
}

// roleTokens are moniker segments that denote a role rather than an
// operator, and are skipped during organization extraction.
var roleTokens = map[string]bool{
	"vn": true, "sn": true, "on": true,
	"validator": true, "sentry": true, "observer": true, "seed": true,
	"node": true, "pub": true, "priv": true,
}

// Organization extracts the operator grouping from a moniker.
//
// DCL monikers follow "Org-Role-NN" conventions ("CSA-Pub-SN-01"), but
// some operators lead with the role ("validator-csa"). The first
// segment that is neither a role token nor purely numeric is taken as
// the organization. Monikers without a separator yield OrgUnknown.
func Organization(moniker string) string {
	m := strings.TrimSpace(moniker)
	if !strings.Contains(m, "-") {
		return OrgUnknown
	}
	for _, seg := range strings.Split(m, "-") {
		if seg == "" || numeric(seg) || roleTokens[strings.ToLower(seg)] {
			continue
		}
		return seg
	}
	return OrgUnknown
}

func numeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
