package auth

import "strings"

// FlowKind tells the callback which landing page the user started from.
type FlowKind string

const (
	FlowLogin   FlowKind = "login"
	FlowConnect FlowKind = "connect"
)

const stateSeparator = "_"

// Valid reports whether k is a known flow.
func (k FlowKind) Valid() bool {
	return k == FlowLogin || k == FlowConnect
}

// EncodeState tags an unguessable nonce with the flow kind so the callback can recover intent
// without server-side storage.
func EncodeState(kind FlowKind, nonce string) string {
	if !kind.Valid() {
		kind = FlowLogin
	}
	return string(kind) + stateSeparator + nonce
}

// ParseFlowKind decodes the flow tag from a state value. Unknown or malformed tags resolve to
// FlowLogin: routing is cosmetic and must never fail the round-trip.
func ParseFlowKind(state string) FlowKind {
	tag, _, ok := strings.Cut(state, stateSeparator)
	if !ok {
		return FlowLogin
	}
	if kind := FlowKind(tag); kind.Valid() {
		return kind
	}
	return FlowLogin
}
