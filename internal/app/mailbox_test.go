package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-p2p/huddle/internal/domain"
)

func candidateMsg(from domain.PeerID, payload string) domain.Message {
	return domain.NewCandidate(from, domain.Candidate{Candidate: payload})
}

func TestDrainReturnsFIFOThenEmpty(t *testing.T) {
	q := NewMailboxQueue()
	const n = 20
	for i := 0; i < n; i++ {
		q.Enqueue("r", "bob", candidateMsg("alice", fmt.Sprintf("cand-%d", i)))
	}

	msgs := q.Drain("r", "bob")
	require.Len(t, msgs, n)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("cand-%d", i), m.Candidate.Candidate)
	}

	assert.Empty(t, q.Drain("r", "bob"))
}

func TestDrainEmptyMailbox(t *testing.T) {
	q := NewMailboxQueue()
	assert.Empty(t, q.Drain("nope", "ghost"))
}

func TestMailboxesAreIsolated(t *testing.T) {
	q := NewMailboxQueue()
	q.Enqueue("r", "bob", candidateMsg("alice", "for-bob"))
	q.Enqueue("r", "carol", candidateMsg("alice", "for-carol"))
	q.Enqueue("other", "bob", candidateMsg("dave", "other-room"))

	msgs := q.Drain("r", "bob")
	require.Len(t, msgs, 1)
	assert.Equal(t, "for-bob", msgs[0].Candidate.Candidate)

	require.Len(t, q.Drain("r", "carol"), 1)
	require.Len(t, q.Drain("other", "bob"), 1)
}

// Two concurrent drains must partition the mailbox: union equals the
// pre-drain contents, no duplicates, no loss.
func TestConcurrentDrainsPartition(t *testing.T) {
	q := NewMailboxQueue()
	const n = 1000
	seen := make(map[string]int)
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		q.Enqueue("r", "bob", candidateMsg("alice", fmt.Sprintf("cand-%d", i)))
	}

	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgs := q.Drain("r", "bob")
			mu.Lock()
			defer mu.Unlock()
			for _, m := range msgs {
				seen[m.Candidate.Candidate]++
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for payload, count := range seen {
		assert.Equalf(t, 1, count, "message %s delivered %d times", payload, count)
	}
}

func TestDropPeerClearsMailbox(t *testing.T) {
	q := NewMailboxQueue()
	q.Enqueue("r", "bob", candidateMsg("alice", "x"))
	q.Enqueue("r", "carol", candidateMsg("alice", "y"))

	q.DropPeer("r", "bob")
	assert.Empty(t, q.Drain("r", "bob"))
	assert.Len(t, q.Drain("r", "carol"), 1)
}

func TestDropRoomClearsAllMailboxes(t *testing.T) {
	q := NewMailboxQueue()
	q.Enqueue("r", "bob", candidateMsg("alice", "x"))
	q.Enqueue("r", "carol", candidateMsg("alice", "y"))

	q.DropRoom("r")
	assert.Empty(t, q.Drain("r", "bob"))
	assert.Empty(t, q.Drain("r", "carol"))
}
