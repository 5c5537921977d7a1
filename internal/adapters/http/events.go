package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// RoomEvent is one directory-change notification pushed to watchers.
type RoomEvent struct {
	Type   string        `json:"type"` // peer-joined | peer-left | room-closed
	RoomID domain.RoomID `json:"roomId"`
	Peer   *domain.Peer  `json:"peer,omitempty"`
	PeerID domain.PeerID `json:"peerId,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type watcher struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (w *watcher) trySend(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("connection closed")
	}
	select {
	case w.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.send)
	_ = w.conn.Close()
}

// EventHub fans room events out to websocket watchers. It is a
// best-effort hint stream on top of the polling API, never a delivery
// guarantee: slow watchers are dropped, not buffered without bound.
type EventHub struct {
	mu       sync.RWMutex
	watchers map[domain.RoomID]map[*watcher]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{watchers: make(map[domain.RoomID]map[*watcher]struct{})}
}

var _ core.RoomEvents = (*EventHub)(nil)

func (h *EventHub) PeerJoined(roomID domain.RoomID, peer domain.Peer) {
	h.broadcast(roomID, RoomEvent{Type: "peer-joined", RoomID: roomID, Peer: &peer})
}

func (h *EventHub) PeerLeft(roomID domain.RoomID, peerID domain.PeerID) {
	h.broadcast(roomID, RoomEvent{Type: "peer-left", RoomID: roomID, PeerID: peerID})
}

func (h *EventHub) RoomClosed(roomID domain.RoomID) {
	h.broadcast(roomID, RoomEvent{Type: "room-closed", RoomID: roomID})
}

func (h *EventHub) broadcast(roomID domain.RoomID, ev RoomEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.events").Msg("marshal event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for w := range h.watchers[roomID] {
		if err := w.trySend(b); err != nil {
			log.Warn().Err(err).Str("module", "adapters.events").Str("room", string(roomID)).Msg("dropping event for slow watcher")
		}
	}
}

// HandleEvents upgrades the request to a websocket and streams room
// events until the client goes away.
func (h *EventHub) HandleEvents(c *gin.Context) {
	roomID := domain.RoomID(c.Param("room"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.events").Msg("ws upgrade")
		return
	}

	w := &watcher{conn: ws, send: make(chan []byte, 32)}
	h.add(roomID, w)
	log.Info().Str("module", "adapters.events").Str("room", string(roomID)).Msg("watcher attached")

	go h.writePump(w)
	go h.readPump(roomID, w)
}

func (h *EventHub) add(roomID domain.RoomID, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.watchers[roomID]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[roomID] = set
	}
	set[w] = struct{}{}
}

func (h *EventHub) remove(roomID domain.RoomID, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.watchers[roomID]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, roomID)
		}
	}
}

func (h *EventHub) writePump(w *watcher) {
	for data := range w.send {
		if err := w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			return
		}
		if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump exists only to notice the close; watchers never send anything.
func (h *EventHub) readPump(roomID domain.RoomID, w *watcher) {
	defer func() {
		h.remove(roomID, w)
		w.close()
		log.Info().Str("module", "adapters.events").Str("room", string(roomID)).Msg("watcher detached")
	}()
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}
