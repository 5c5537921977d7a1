// Package negotiate drives one participant's connection negotiation: role
// assignment, the offer/answer/candidate exchange through the relay, and
// the relay-only fallback when the first path attempt fails.
package negotiate

// Phase is where a session currently stands in the negotiation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRoleAssigned
	PhaseOffering
	PhaseAwaitingOffer
	PhaseAnswering
	PhaseAwaitingAnswer
	PhaseConnecting
	PhaseConnected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRoleAssigned:
		return "role-assigned"
	case PhaseOffering:
		return "offering"
	case PhaseAwaitingOffer:
		return "awaiting-offer"
	case PhaseAnswering:
		return "answering"
	case PhaseAwaitingAnswer:
		return "awaiting-answer"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Strategy selects how the transport builds its network path.
type Strategy int

const (
	StrategyDefault Strategy = iota
	StrategyRelayOnly
)

func (s Strategy) String() string {
	if s == StrategyRelayOnly {
		return "relay-only"
	}
	return "default"
}

// Reason classifies a terminal negotiation failure.
type Reason string

const (
	ReasonNoResponse     Reason = "no-response"
	ReasonPathFailed     Reason = "path-failed"
	ReasonRelayExhausted Reason = "relay-exhausted"
)

// FailureError is the terminal, user-visible outcome of a session that
// exhausted its retry policy.
type FailureError struct {
	Reason Reason
}

func (e *FailureError) Error() string {
	return "negotiation failed: " + string(e.Reason)
}
