package server

import (
	"log"
	"sync"
)

// MatchQueue holds player ids waiting for an opponent, in arrival order.
// Pairing is strict FIFO, two at a time; the first id popped takes the
// first-mover role in the session built from the pair.
type MatchQueue struct {
	ids    []string
	queued map[string]bool // membership, so re-enqueue is a cheap no-op
	mu     sync.Mutex
}

func NewMatchQueue() *MatchQueue {
	return &MatchQueue{
		queued: make(map[string]bool),
	}
}

// Enqueue appends a player unless already queued. Returns whether the
// player was added.
func (q *MatchQueue) Enqueue(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.queued[playerID] {
		return false
	}
	q.ids = append(q.ids, playerID)
	q.queued[playerID] = true
	log.Printf("Player %s joined queue. Queue depth: %d", playerID, len(q.ids))
	return true
}

// TryPair pops the two oldest entries if at least two players are waiting.
func (q *MatchQueue) TryPair() (first, second string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) < 2 {
		return "", "", false
	}
	first, second = q.ids[0], q.ids[1]
	q.ids = q.ids[2:]
	delete(q.queued, first)
	delete(q.queued, second)
	return first, second, true
}

// Remove drops a player from the queue; no-op if absent. Used when a
// queued player disconnects before being paired.
func (q *MatchQueue) Remove(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.queued[playerID] {
		return false
	}
	delete(q.queued, playerID)
	for i, id := range q.ids {
		if id == playerID {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the current queue depth.
func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
