package app

import (
	"sync"

	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

// MailboxQueue is a threadsafe in-memory MailboxStore. One FIFO slice per
// (room, recipient); Drain swaps the slice out under the lock so two
// concurrent drains partition the contents with no duplication.
type MailboxQueue struct {
	mu    sync.Mutex
	rooms map[domain.RoomID]map[domain.PeerID][]domain.Message
}

func NewMailboxQueue() *MailboxQueue {
	return &MailboxQueue{rooms: make(map[domain.RoomID]map[domain.PeerID][]domain.Message)}
}

func (q *MailboxQueue) Enqueue(roomID domain.RoomID, to domain.PeerID, msg domain.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	boxes, ok := q.rooms[roomID]
	if !ok {
		boxes = make(map[domain.PeerID][]domain.Message)
		q.rooms[roomID] = boxes
	}
	boxes[to] = append(boxes[to], msg)
}

func (q *MailboxQueue) Drain(roomID domain.RoomID, forPeer domain.PeerID) []domain.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	boxes, ok := q.rooms[roomID]
	if !ok {
		return nil
	}
	msgs := boxes[forPeer]
	if len(msgs) == 0 {
		return nil
	}
	delete(boxes, forPeer)
	return msgs
}

func (q *MailboxQueue) DropPeer(roomID domain.RoomID, peerID domain.PeerID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if boxes, ok := q.rooms[roomID]; ok {
		delete(boxes, peerID)
	}
}

func (q *MailboxQueue) DropRoom(roomID domain.RoomID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.rooms, roomID)
}

var _ core.MailboxStore = (*MailboxQueue)(nil)
