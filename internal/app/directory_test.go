package app

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-p2p/huddle/internal/domain"
)

func TestFirstJoinerBecomesInitiator(t *testing.T) {
	d := NewRoomDirectory()

	res := d.Join("room123", domain.Peer{ID: "alice", Name: "Alice"})
	require.Equal(t, domain.RoleInitiator, res.Role)
	assert.Equal(t, domain.PeerID("alice"), res.Initiator.ID)
	assert.Empty(t, res.Responders)

	res = d.Join("room123", domain.Peer{ID: "bob", Name: "Bob"})
	require.Equal(t, domain.RoleResponder, res.Role)
	assert.Equal(t, domain.PeerID("alice"), res.Initiator.ID)
	assert.Equal(t, "Alice", res.Initiator.Name)
	require.Len(t, res.Responders, 1)
	assert.Equal(t, domain.PeerID("bob"), res.Responders[0].ID)
}

func TestRejoinIsIdempotent(t *testing.T) {
	d := NewRoomDirectory()
	d.Join("r", domain.Peer{ID: "alice"})
	d.Join("r", domain.Peer{ID: "bob"})

	res := d.Join("r", domain.Peer{ID: "bob"})
	assert.Equal(t, domain.RoleResponder, res.Role)
	assert.Len(t, res.Responders, 1)

	// The initiator re-joining keeps its role and does not become a responder.
	res = d.Join("r", domain.Peer{ID: "alice"})
	assert.Equal(t, domain.RoleInitiator, res.Role)
	assert.Len(t, res.Responders, 1)
}

func TestInitiatorLeaveDeletesRoom(t *testing.T) {
	d := NewRoomDirectory()
	d.Join("r", domain.Peer{ID: "alice"})
	d.Join("r", domain.Peer{ID: "bob"})

	out := d.Leave("r", "alice")
	assert.True(t, out.RoomDeleted)

	_, ok := d.Describe("r")
	assert.False(t, ok)
}

func TestResponderLeave(t *testing.T) {
	d := NewRoomDirectory()
	d.Join("r", domain.Peer{ID: "alice"})
	d.Join("r", domain.Peer{ID: "bob"})

	out := d.Leave("r", "bob")
	assert.True(t, out.WasMember)
	assert.False(t, out.RoomDeleted)

	snap, ok := d.Describe("r")
	require.True(t, ok)
	assert.Empty(t, snap.Responders)
}

func TestLeaveIsTotal(t *testing.T) {
	d := NewRoomDirectory()
	assert.NotPanics(t, func() {
		out := d.Leave("nope", "ghost")
		assert.False(t, out.WasMember)
	})

	d.Join("r", domain.Peer{ID: "alice"})
	out := d.Leave("r", "ghost")
	assert.False(t, out.WasMember)
}

func TestConcurrentJoinsElectOneInitiator(t *testing.T) {
	d := NewRoomDirectory()
	const n = 32

	var wg sync.WaitGroup
	initiators := make(chan domain.PeerID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.PeerID(fmt.Sprintf("peer-%d", i))
			res := d.Join("race", domain.Peer{ID: id})
			if res.Role == domain.RoleInitiator {
				initiators <- id
			}
		}(i)
	}
	wg.Wait()
	close(initiators)

	var winners []domain.PeerID
	for id := range initiators {
		winners = append(winners, id)
	}
	require.Len(t, winners, 1)

	snap, ok := d.Describe("race")
	require.True(t, ok)
	assert.Equal(t, winners[0], snap.Initiator.ID)
	assert.Len(t, snap.Responders, n-1)
}

func TestExpireIdle(t *testing.T) {
	d := NewRoomDirectory()
	now := time.Now()
	d.now = func() time.Time { return now }

	d.Join("old", domain.Peer{ID: "a"})
	now = now.Add(time.Hour)
	d.Join("fresh", domain.Peer{ID: "b"})

	expired := d.ExpireIdle(now.Add(-time.Minute))
	require.Equal(t, []domain.RoomID{"old"}, expired)

	_, ok := d.Describe("old")
	assert.False(t, ok)
	_, ok = d.Describe("fresh")
	assert.True(t, ok)
}

func TestList(t *testing.T) {
	d := NewRoomDirectory()
	d.Join("a", domain.Peer{ID: "p1"})
	d.Join("a", domain.Peer{ID: "p2"})
	d.Join("b", domain.Peer{ID: "p3"})

	infos := d.List()
	require.Len(t, infos, 2)
	counts := map[domain.RoomID]int{}
	for _, info := range infos {
		counts[info.ID] = info.PeerCount
	}
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 1, counts["b"])
}
