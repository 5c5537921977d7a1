// Package core holds the interfaces the server and client sides are wired
// through. Implementations live in app (stores) and adapters (transports).
package core

import (
	"time"

	"github.com/huddle-p2p/huddle/internal/domain"
)

// RoomSnapshot is a read-only view of a room for discovery/UI polling.
type RoomSnapshot struct {
	Initiator  domain.Peer   `json:"initiator"`
	Responders []domain.Peer `json:"responders"`
}

// JoinResult is what a peer learns from joining: its assigned role and the
// authoritative room membership at join time.
type JoinResult struct {
	Role       domain.Role   `json:"role"`
	Initiator  domain.Peer   `json:"initiator"`
	Responders []domain.Peer `json:"responders"`
}

// LeaveOutcome reports what a leave actually did, so callers can clean up
// the mailboxes that go with it.
type LeaveOutcome struct {
	WasMember   bool
	RoomDeleted bool
}

type RoomInfo struct {
	ID        domain.RoomID `json:"id"`
	PeerCount int           `json:"peer_count"`
}

// RoomStore is the room directory. Join and Leave are total over their
// inputs; only Describe can report absence.
//
// Initiator election is first-writer-wins: whoever references an unknown
// room identifier first owns it.
type RoomStore interface {
	Join(roomID domain.RoomID, peer domain.Peer) JoinResult
	Leave(roomID domain.RoomID, peerID domain.PeerID) LeaveOutcome
	Describe(roomID domain.RoomID) (RoomSnapshot, bool)
	List() []RoomInfo

	// Touch marks the room active for idle-expiry accounting.
	Touch(roomID domain.RoomID)
	// ExpireIdle removes rooms with no activity since the cutoff and
	// returns their identifiers.
	ExpireIdle(cutoff time.Time) []domain.RoomID
}
