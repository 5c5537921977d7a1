// Package app implements the server-side shared state: the room directory
// and the relay mailboxes, plus the service that ties them together.
package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

type roomState struct {
	initiator  domain.Peer
	responders []domain.Peer
	lastActive time.Time
}

func (r *roomState) snapshot() core.RoomSnapshot {
	out := core.RoomSnapshot{Initiator: r.initiator}
	out.Responders = append(out.Responders, r.responders...)
	return out
}

// RoomDirectory is a threadsafe in-memory RoomStore.
// The first peer to reference an unknown room identifier becomes its
// initiator; everyone after that is a responder.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomState
	now   func() time.Time
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{
		rooms: make(map[domain.RoomID]*roomState),
		now:   time.Now,
	}
}

func (d *RoomDirectory) Join(roomID domain.RoomID, peer domain.Peer) core.JoinResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		room = &roomState{initiator: peer, lastActive: d.now()}
		d.rooms[roomID] = room
		log.Info().Str("module", "app.directory").Str("room", string(roomID)).Str("peer", string(peer.ID)).Msg("room created")
		return core.JoinResult{Role: domain.RoleInitiator, Initiator: peer}
	}

	room.lastActive = d.now()
	if room.initiator.ID != peer.ID && !containsPeer(room.responders, peer.ID) {
		room.responders = append(room.responders, peer)
		log.Info().Str("module", "app.directory").Str("room", string(roomID)).Str("peer", string(peer.ID)).Msg("responder joined")
	}

	snap := room.snapshot()
	role := domain.RoleResponder
	if room.initiator.ID == peer.ID {
		role = domain.RoleInitiator
	}
	return core.JoinResult{Role: role, Initiator: snap.Initiator, Responders: snap.Responders}
}

func (d *RoomDirectory) Leave(roomID domain.RoomID, peerID domain.PeerID) core.LeaveOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return core.LeaveOutcome{}
	}

	if room.initiator.ID == peerID {
		delete(d.rooms, roomID)
		log.Info().Str("module", "app.directory").Str("room", string(roomID)).Msg("room deleted, initiator left")
		return core.LeaveOutcome{WasMember: true, RoomDeleted: true}
	}

	room.lastActive = d.now()
	for i, p := range room.responders {
		if p.ID == peerID {
			room.responders = append(room.responders[:i], room.responders[i+1:]...)
			log.Info().Str("module", "app.directory").Str("room", string(roomID)).Str("peer", string(peerID)).Msg("responder left")
			return core.LeaveOutcome{WasMember: true}
		}
	}
	return core.LeaveOutcome{}
}

func (d *RoomDirectory) Describe(roomID domain.RoomID) (core.RoomSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	if !ok {
		return core.RoomSnapshot{}, false
	}
	return room.snapshot(), true
}

func (d *RoomDirectory) List() []core.RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(d.rooms))
	for id, r := range d.rooms {
		out = append(out, core.RoomInfo{ID: id, PeerCount: 1 + len(r.responders)})
	}
	return out
}

func (d *RoomDirectory) Touch(roomID domain.RoomID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if room, ok := d.rooms[roomID]; ok {
		room.lastActive = d.now()
	}
}

func (d *RoomDirectory) ExpireIdle(cutoff time.Time) []domain.RoomID {
	d.mu.Lock()
	defer d.mu.Unlock()
	var expired []domain.RoomID
	for id, room := range d.rooms {
		if room.lastActive.Before(cutoff) {
			delete(d.rooms, id)
			expired = append(expired, id)
		}
	}
	return expired
}

func containsPeer(peers []domain.Peer, id domain.PeerID) bool {
	for _, p := range peers {
		if p.ID == id {
			return true
		}
	}
	return false
}
