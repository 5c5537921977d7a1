package core

import "github.com/huddle-p2p/huddle/internal/domain"

// MailboxStore is the per-room, per-recipient relay queue.
//
// Enqueue is fire-and-forget and never validates membership: a message may
// arrive slightly before directory state propagates. Drain is the sole
// consumption primitive — atomic read-and-clear, FIFO within a recipient,
// at-most-once delivery, no redelivery.
type MailboxStore interface {
	Enqueue(roomID domain.RoomID, to domain.PeerID, msg domain.Message)
	Drain(roomID domain.RoomID, forPeer domain.PeerID) []domain.Message

	// DropPeer clears one recipient's mailbox (peer left).
	DropPeer(roomID domain.RoomID, peerID domain.PeerID)
	// DropRoom clears every mailbox in the room (room deleted).
	DropRoom(roomID domain.RoomID)
}

// RoomEvents is an optional notification sink for directory changes.
// Implemented by the websocket event feed; a nil sink disables it.
type RoomEvents interface {
	PeerJoined(roomID domain.RoomID, peer domain.Peer)
	PeerLeft(roomID domain.RoomID, peerID domain.PeerID)
	RoomClosed(roomID domain.RoomID)
}
