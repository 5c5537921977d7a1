package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

// Service is the server-side signaling core: it keeps the directory and
// the mailboxes consistent with each other (a leave clears the mailboxes
// that go with it) and feeds the optional event sink.
type Service struct {
	Rooms  core.RoomStore
	Mail   core.MailboxStore
	Events core.RoomEvents
}

func NewService(rooms core.RoomStore, mail core.MailboxStore, events core.RoomEvents) *Service {
	return &Service{Rooms: rooms, Mail: mail, Events: events}
}

func (s *Service) Join(roomID domain.RoomID, peer domain.Peer) core.JoinResult {
	res := s.Rooms.Join(roomID, peer)
	if s.Events != nil && res.Role == domain.RoleResponder {
		s.Events.PeerJoined(roomID, peer)
	}
	return res
}

func (s *Service) Leave(roomID domain.RoomID, peerID domain.PeerID) {
	out := s.Rooms.Leave(roomID, peerID)
	switch {
	case out.RoomDeleted:
		s.Mail.DropRoom(roomID)
		if s.Events != nil {
			s.Events.RoomClosed(roomID)
		}
	case out.WasMember:
		s.Mail.DropPeer(roomID, peerID)
		if s.Events != nil {
			s.Events.PeerLeft(roomID, peerID)
		}
	}
}

func (s *Service) Describe(roomID domain.RoomID) (core.RoomSnapshot, error) {
	snap, ok := s.Rooms.Describe(roomID)
	if !ok {
		return core.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return snap, nil
}

func (s *Service) List() []core.RoomInfo { return s.Rooms.List() }

// Relay enqueues a negotiation message. Fire-and-forget: the recipient is
// not checked against the directory, messages may legitimately arrive
// before a join is visible.
func (s *Service) Relay(roomID domain.RoomID, to domain.PeerID, msg domain.Message) {
	s.Mail.Enqueue(roomID, to, msg)
	s.Rooms.Touch(roomID)
}

func (s *Service) Drain(roomID domain.RoomID, forPeer domain.PeerID) []domain.Message {
	s.Rooms.Touch(roomID)
	return s.Mail.Drain(roomID, forPeer)
}

// ExpireIdle deletes rooms idle longer than ttl, with their mailboxes.
func (s *Service) ExpireIdle(ttl time.Duration) int {
	expired := s.Rooms.ExpireIdle(time.Now().Add(-ttl))
	for _, id := range expired {
		s.Mail.DropRoom(id)
		if s.Events != nil {
			s.Events.RoomClosed(id)
		}
		log.Info().Str("module", "app.service").Str("room", string(id)).Msg("idle room expired")
	}
	return len(expired)
}

// RunSweeper expires idle rooms on a fixed interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireIdle(ttl)
		}
	}
}
