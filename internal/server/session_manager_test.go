package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"matchboard-server/internal/game"
	"matchboard-server/internal/tictactoe"
)

func newEngine() *SessionManager {
	return NewSessionManager(ttt())
}

// playOut drives a paired-and-started session to an X win on the top row.
func playOut(t *testing.T, m *SessionManager, first, second string) *MoveResult {
	t.Helper()
	var res *MoveResult
	var err error
	for _, mv := range []struct {
		player string
		pos    int
	}{
		{first, 0}, {second, 3}, {first, 1}, {second, 4}, {first, 2},
	} {
		res, err = m.ApplyMove(mv.player, "", cell(mv.pos))
		assert.NoError(t, err)
	}
	return res
}

func TestSessionManager_PairsTwoOldest(t *testing.T) {
	m := newEngine()

	assert.Nil(t, m.Enqueue("p1"), "one player waits")

	pairing := m.Enqueue("p2")
	assert.NotNil(t, pairing)
	assert.Equal(t, "p1", pairing.First)
	assert.Equal(t, "p2", pairing.Second)
	assert.False(t, pairing.FilledOpen)
	assert.Equal(t, StatusPaired, pairing.Session.Status)

	sessions, depth := m.Stats()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 0, depth)
}

func TestSessionManager_EnqueueWhileQueuedIsNoOp(t *testing.T) {
	m := newEngine()

	m.Enqueue("p1")
	assert.Nil(t, m.Enqueue("p1"))

	_, depth := m.Stats()
	assert.Equal(t, 1, depth, "duplicate never inflates the queue")
}

func TestSessionManager_EnqueueWhileInSessionIsNoOp(t *testing.T) {
	m := newEngine()
	m.Enqueue("p1")
	m.Enqueue("p2")

	assert.Nil(t, m.Enqueue("p1"))

	sessions, depth := m.Stats()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 0, depth)
}

func TestSessionManager_MoveRoutedBySenderNotSessionID(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)

	// Omitted session id resolves through the player index
	res, err := m.ApplyMove("p1", "", cell(0))
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Session.MoveCount)

	// A mismatched id is refused outright
	_, err = m.ApplyMove("p2", "bogus-session", cell(3))
	assert.ErrorIs(t, err, ErrNotInSession)

	// The matching id works
	_, err = m.ApplyMove("p2", pairing.Session.ID, cell(3))
	assert.NoError(t, err)
}

// The broadcast for an accepted move is assembled after the engine lock is
// released, so the result must carry a view fixed at move time, not a live
// read of state the opponent's next move mutates in place.
func TestSessionManager_MoveResultViewIsFixedAtMoveTime(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)

	first, err := m.ApplyMove("p1", "", cell(0))
	assert.NoError(t, err)

	_, err = m.ApplyMove("p2", "", cell(4))
	assert.NoError(t, err)

	board := first.View.(tictactoe.BoardView).Board
	assert.Equal(t, "X", board[0])
	assert.Equal(t, "EMPTY", board[4], "later move must not show through the earlier view")
}

func TestSessionManager_MoveWithoutSession(t *testing.T) {
	m := newEngine()

	_, err := m.ApplyMove("stranger", "", cell(0))
	assert.ErrorIs(t, err, ErrNotInSession)
}

func TestSessionManager_GameEndRequeuesBothIntoOneSession(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)

	res := playOut(t, m, "p1", "p2")
	assert.True(t, res.Outcome.Over)
	assert.Equal(t, game.RoleFirst, res.Outcome.Winner)

	// Both players land in placements: the first opens a session, the
	// second fills it, so the pair is immediately rematched.
	assert.Len(t, res.Placements, 2)
	var waiting, paired *Placement
	for _, pl := range res.Placements {
		switch pl.Status {
		case StatusWaiting:
			waiting = pl
		case StatusPaired:
			paired = pl
		}
	}
	assert.NotNil(t, waiting)
	assert.NotNil(t, paired)
	assert.Same(t, waiting.Session, paired.Session, "second placement fills the first's open session")

	// The finished session is gone; only the rematch session remains.
	sessions, depth := m.Stats()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 0, depth)
	assert.NotEqual(t, res.Session.ID, waiting.Session.ID)
}

func TestSessionManager_FinishedSessionRejectsLateMove(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)

	finished := playOut(t, m, "p1", "p2").Session

	// Both players now sit in the rematch session, which is paired but not
	// started, so a move aimed at the old session id is not-in-session and
	// a move into the new one is not-started.
	_, err := m.ApplyMove("p2", finished.ID, cell(5))
	assert.ErrorIs(t, err, ErrNotInSession)

	_, err = m.ApplyMove("p1", "", cell(5))
	assert.ErrorIs(t, err, ErrGameNotStarted)
}

func TestSessionManager_RemoveFromQueue(t *testing.T) {
	m := newEngine()
	m.Enqueue("p1")

	rem := m.Remove("p1")
	assert.Nil(t, rem, "queued player has no session to tear down")

	_, depth := m.Stats()
	assert.Equal(t, 0, depth)

	// p1 left, so p2 waits alone
	assert.Nil(t, m.Enqueue("p2"))
}

func TestSessionManager_RemoveForfeitsAndRequeuesSurvivor(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)
	m.ApplyMove("p1", "", cell(0))

	rem := m.Remove("p1")
	assert.NotNil(t, rem)
	assert.Equal(t, "p2", rem.Opponent)
	assert.True(t, rem.Session.Resigned)

	// Survivor parks alone in a fresh open session
	assert.NotNil(t, rem.Placement)
	assert.Equal(t, StatusWaiting, rem.Placement.Status)
	assert.Equal(t, game.RoleFirst, rem.Placement.Role)

	sessions, _ := m.Stats()
	assert.Equal(t, 1, sessions)
}

func TestSessionManager_RemoveIsIdempotent(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)

	assert.NotNil(t, m.Remove("p1"))
	assert.Nil(t, m.Remove("p1"), "second removal finds nothing")
	assert.Nil(t, m.Remove("never-seen"))
}

func TestSessionManager_SurvivorPairsWithNextJoiner(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)
	m.Remove("p1")

	// p2 occupies the open session; a fresh joiner fills it instead of
	// waiting in the queue behind them.
	next := m.Enqueue("p3")
	assert.NotNil(t, next)
	assert.True(t, next.FilledOpen)
	assert.Equal(t, "p2", next.First)
	assert.Equal(t, "p3", next.Second)
	assert.Equal(t, StatusPaired, next.Session.Status)
}

func TestSessionManager_SurvivorChainsThroughForfeits(t *testing.T) {
	m := newEngine()
	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)

	// p1 drops, p3 joins p2, p3 drops, p4 joins p2. The index stays
	// consistent through every transition.
	m.Remove("p1")
	second := m.Enqueue("p3")
	m.StartSession(second.Session.ID)
	rem := m.Remove("p3")
	assert.Equal(t, "p2", rem.Opponent)

	third := m.Enqueue("p4")
	assert.NotNil(t, third)
	assert.Equal(t, "p2", third.First)

	sessions, depth := m.Stats()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 0, depth)
}

func TestSessionManager_SnapshotTracksCurrentSession(t *testing.T) {
	m := newEngine()

	_, _, ok := m.Snapshot("p1")
	assert.False(t, ok)

	pairing := pairPlayers(t, m, "p1", "p2")
	m.StartSession(pairing.Session.ID)

	sid, view, ok := m.Snapshot("p1")
	assert.True(t, ok)
	assert.Equal(t, pairing.Session.ID, sid)
	assert.NotNil(t, view)

	// After the game ends the snapshot follows the player to the rematch
	playOut(t, m, "p1", "p2")
	nextSid, _, ok := m.Snapshot("p1")
	assert.True(t, ok)
	assert.NotEqual(t, sid, nextSid)
}

func pairPlayers(t *testing.T, m *SessionManager, first, second string) *Pairing {
	t.Helper()
	assert.Nil(t, m.Enqueue(first))
	pairing := m.Enqueue(second)
	assert.NotNil(t, pairing)
	return pairing
}
