package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/domain"
)

// RoomEvent mirrors the server's event feed payload.
type RoomEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Peer   *domain.Peer  `json:"peer,omitempty"`
	PeerID domain.PeerID `json:"peerId,omitempty"`
}

// WatchRoom subscribes to the room's websocket event feed. Events arrive
// on the returned channel until ctx is done or the server closes the
// stream; the channel is then closed. The feed is a hint, not a delivery
// guarantee — callers still poll the directory for authoritative state.
func (c *Client) WatchRoom(ctx context.Context, roomID domain.RoomID) (<-chan RoomEvent, error) {
	wsURL := httpToWS(c.baseURL) + "/api/rooms/" + string(roomID) + "/events"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial event feed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	events := make(chan RoomEvent, 8)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var ev RoomEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					log.Debug().Err(err).Str("module", "client").Str("room", string(roomID)).Msg("event feed closed")
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func httpToWS(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
