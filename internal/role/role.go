// Package role derives the viewer's access level from the bearer token and
// the cached profile set. The derivation is a pure projection: it is
// recomputed on every read and never stored, so it cannot desynchronize from
// its inputs.
package role

import "lovebox/internal/token"

// Role classifies the viewer of the toolbox.
type Role string

const (
	Guest      Role = "guest"
	Me         Role = "me"
	Girlfriend Role = "girlfriend"
	Test       Role = "test"
)

// ServerUser is the generic answer the backend gives for a token it knows
// but cannot map to one of the three fixed identities. It carries no
// identity information and never overrides the local derivation.
const ServerUser = "user"

// Resolve maps a bearer token to a role by comparing it against the profile
// tokens. The priority order girlfriend > test > me is load-bearing: during
// profile editing the same value can sit in several slots at once, and the
// first match must win. An empty token is always a guest.
func Resolve(tok string, p token.Profiles) Role {
	if tok == "" {
		return Guest
	}
	switch tok {
	case p.Girlfriend:
		return Girlfriend
	case p.Test:
		return Test
	case p.Me:
		return Me
	}
	return Guest
}

// Apply folds a server-confirmed role into the locally derived one. Once the
// backend has confirmed a token its answer wins, except for the generic
// "user" sentinel (or no answer at all), where the local derivation stays
// authoritative so the client remains usable before or without the round
// trip.
func Apply(server string, derived Role) Role {
	switch Role(server) {
	case Me, Girlfriend, Test:
		return Role(server)
	}
	return derived
}

// TargetToken returns the counterpart's token for directed actions such as
// love buttons and photo rewards: me addresses girlfriend and vice versa.
// Other roles have no counterpart.
func TargetToken(r Role, p token.Profiles) string {
	switch r {
	case Me:
		return p.Girlfriend
	case Girlfriend:
		return p.Me
	}
	return ""
}
