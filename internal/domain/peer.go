// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNameTooLong  = errors.New("display name too long")
)

type (
	RoomID string
	PeerID string
)

// Role is the side a peer plays in a room's negotiation.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

type Peer struct {
	ID   PeerID `json:"id"`
	Name string `json:"name"`
}

// NewPeer is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewPeer(id PeerID, name string) (Peer, error) {
	if len(name) > MaxDisplayNameLen {
		return Peer{}, ErrNameTooLong
	}
	if name == "" {
		name = string(id)
	}
	return Peer{ID: id, Name: name}, nil
}
