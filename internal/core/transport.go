package core

import (
	"context"

	"github.com/huddle-p2p/huddle/internal/domain"
)

// TransportState is the adapter's view of the underlying connection.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport wraps the peer-connection primitive behind the narrow surface
// the negotiation state machine needs. Callbacks must be registered before
// the first CreateOffer/CreateAnswer call.
// Owned by one session; the session must Close() it.
type Transport interface {
	CreateOffer(ctx context.Context) (domain.SessionDescription, error)
	CreateAnswer(ctx context.Context) (domain.SessionDescription, error)
	SetRemoteDescription(desc domain.SessionDescription) error
	AddRemoteCandidate(cand domain.Candidate) error

	OnLocalCandidate(fn func(domain.Candidate))
	OnStateChange(fn func(TransportState))

	Close() error
}

// TransportFactory builds a fresh Transport. relayOnly restricts the
// connection to relay-capable paths (the fallback strategy).
type TransportFactory func(relayOnly bool) (Transport, error)
