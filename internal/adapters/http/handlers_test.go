package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-p2p/huddle/internal/app"
	"github.com/huddle-p2p/huddle/internal/config"
	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Mode: "release",
		ICEServers: []domain.ICEServer{
			{URLs: []string{"stun:stun.example.org:3478"}},
			{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "c"},
		},
	}
	hub := NewEventHub()
	svc := app.NewService(app.NewRoomDirectory(), app.NewMailboxQueue(), hub)
	srv := httptest.NewServer(SetupRouter(cfg, svc, hub))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestJoinAssignsRoles(t *testing.T) {
	srv := newTestServer(t)

	var first core.JoinResult
	resp := postJSON(t, srv.URL+"/api/rooms/join", map[string]any{
		"roomId": "room123", "peerId": "alice", "displayName": "Alice",
	}, &first)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.RoleInitiator, first.Role)

	var second core.JoinResult
	postJSON(t, srv.URL+"/api/rooms/join", map[string]any{
		"roomId": "room123", "peerId": "bob", "displayName": "Bob",
	}, &second)
	assert.Equal(t, domain.RoleResponder, second.Role)
	assert.Equal(t, domain.PeerID("alice"), second.Initiator.ID)
	assert.Equal(t, "Alice", second.Initiator.Name)
}

func TestJoinRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/rooms/join", map[string]any{"roomId": "r"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDescribeUnknownRoomIs404(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/rooms/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRelayAndDrainRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/api/rooms/join", map[string]any{"roomId": "r", "peerId": "alice"}, nil)
	postJSON(t, srv.URL+"/api/rooms/join", map[string]any{"roomId": "r", "peerId": "bob"}, nil)

	postJSON(t, srv.URL+"/api/relay/offer", map[string]any{
		"roomId": "r", "to": "bob", "from": "alice",
		"description": map[string]string{"type": "offer", "sdp": "v=0 alice"},
	}, nil)
	postJSON(t, srv.URL+"/api/relay/candidate", map[string]any{
		"roomId": "r", "to": "bob", "from": "alice",
		"candidate": map[string]any{"candidate": "candidate:1 1 udp ..."},
	}, nil)

	var drained DrainResponse
	postJSON(t, srv.URL+"/api/relay/drain", map[string]any{"roomId": "r", "forPeerId": "bob"}, &drained)
	require.Len(t, drained.Messages, 2)
	assert.Equal(t, domain.KindOffer, drained.Messages[0].Kind)
	assert.Equal(t, domain.PeerID("alice"), drained.Messages[0].From)
	assert.Equal(t, "v=0 alice", drained.Messages[0].Description.SDP)
	assert.Equal(t, domain.KindCandidate, drained.Messages[1].Kind)

	var again DrainResponse
	postJSON(t, srv.URL+"/api/relay/drain", map[string]any{"roomId": "r", "forPeerId": "bob"}, &again)
	assert.Empty(t, again.Messages)
}

func TestLeaveByInitiatorClearsMailboxes(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/api/rooms/join", map[string]any{"roomId": "r", "peerId": "alice"}, nil)
	postJSON(t, srv.URL+"/api/rooms/join", map[string]any{"roomId": "r", "peerId": "bob"}, nil)
	postJSON(t, srv.URL+"/api/relay/answer", map[string]any{
		"roomId": "r", "to": "alice", "from": "bob",
		"description": map[string]string{"type": "answer", "sdp": "v=0 bob"},
	}, nil)

	postJSON(t, srv.URL+"/api/rooms/leave", map[string]any{"roomId": "r", "peerId": "alice"}, nil)

	resp, err := http.Get(srv.URL + "/api/rooms/r")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var drained DrainResponse
	postJSON(t, srv.URL+"/api/relay/drain", map[string]any{"roomId": "r", "forPeerId": "alice"}, &drained)
	assert.Empty(t, drained.Messages)
}

func TestICEPathDiscovery(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/ice-servers")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out ICEServersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.ICEServers, 2)
	assert.False(t, out.ICEServers[0].IsRelay())
	assert.True(t, out.ICEServers[1].IsRelay())
}

func TestEventFeedAnnouncesJoinsAndLeaves(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/api/rooms/join", map[string]any{"roomId": "r", "peerId": "alice"}, nil)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/rooms/r/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	postJSON(t, srv.URL+"/api/rooms/join", map[string]any{"roomId": "r", "peerId": "bob", "displayName": "Bob"}, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev RoomEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "peer-joined", ev.Type)
	require.NotNil(t, ev.Peer)
	assert.Equal(t, domain.PeerID("bob"), ev.Peer.ID)

	postJSON(t, srv.URL+"/api/rooms/leave", map[string]any{"roomId": "r", "peerId": "bob"}, nil)
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "peer-left", ev.Type)
	assert.Equal(t, domain.PeerID("bob"), ev.PeerID)
}
