package server

import (
	"encoding/json"
	"log"
	"sync"

	"matchboard-server/internal/game"
)

// SessionManager owns one game variant's matchmaking state: the FIFO queue,
// the live session index, the player → session index, and the at-most-one
// open session still accepting a second participant.
//
// Pairing, requeueing and disconnect handling each mutate several of those
// structures together, so every operation runs under the manager's single
// mutex: check → decide → mutate is one uninterrupted step, and all socket
// writes happen after the lock is released, from data the operation
// returned. A failed send therefore never needs a rollback.
type SessionManager struct {
	rules    game.Rules
	queue    *MatchQueue
	sessions map[string]*GameSession
	byPlayer map[string]string // playerID → sessionID
	waiting  *GameSession      // the open session, nil if none
	mu       sync.Mutex
}

func NewSessionManager(rules game.Rules) *SessionManager {
	return &SessionManager{
		rules:    rules,
		queue:    NewMatchQueue(),
		sessions: make(map[string]*GameSession),
		byPlayer: make(map[string]string),
	}
}

// Pairing describes a session that just reached two participants.
type Pairing struct {
	Session *GameSession
	First   string // first mover
	Second  string
	// FilledOpen is set when the second player joined an already-waiting
	// open session rather than being popped from the queue alongside the
	// first; the waiting occupant is then notified instead of matched.
	FilledOpen bool
}

// Placement describes where the requeue algorithm put a player.
type Placement struct {
	Session    *GameSession
	Status     SessionStatus // waiting or paired at placement time
	Role       game.Role
	PairedWith string // the occupant the placement paired with, if any
}

// MoveResult carries everything the dispatcher needs to broadcast after an
// accepted move. Players and View snapshot the slots and the state as of
// the move: a finishing move tears the session down before this returns,
// and the opponent's next move may mutate the state before the broadcast
// goes out.
type MoveResult struct {
	Session    *GameSession
	Players    [2]*Participant
	Outcome    game.Outcome
	View       any
	Placements map[string]*Placement // follow-up sessions, set on game end
}

// Removal is the result of taking a player out of the engine.
type Removal struct {
	Session   *GameSession
	Opponent  string // surviving opponent, "" if none
	Placement *Placement
}

// Enqueue enters a player into matchmaking. Already-queued and already-in-
// session players are no-ops. If an open session is waiting for an
// opponent the player fills it; otherwise the player queues, and the two
// oldest queued players are paired the moment the depth reaches two.
func (m *SessionManager) Enqueue(playerID string) *Pairing {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, inSession := m.byPlayer[playerID]; inSession {
		log.Printf("Player %s already in a %s session, ignoring join_queue", playerID, m.rules.Name())
		return nil
	}

	// Survivors parked in the open session would never meet queued
	// players otherwise.
	if m.waiting != nil && m.waiting.Participant(playerID) == nil {
		sess := m.waiting
		occupant := sess.Players[0]
		if _, err := sess.AddParticipant(playerID); err == nil {
			m.byPlayer[playerID] = sess.ID
			m.waiting = nil
			log.Printf("Session %s paired: %s vs %s (%s)", sess.ID, occupant.PlayerID, playerID, m.rules.Name())
			return &Pairing{
				Session:    sess,
				First:      occupant.PlayerID,
				Second:     playerID,
				FilledOpen: true,
			}
		}
	}

	m.queue.Enqueue(playerID)

	first, second, ok := m.queue.TryPair()
	if !ok {
		return nil
	}

	sess := m.createSessionLocked()
	sess.AddParticipant(first)
	sess.AddParticipant(second)
	m.byPlayer[first] = sess.ID
	m.byPlayer[second] = sess.ID
	log.Printf("Session %s paired from queue: %s vs %s (%s)", sess.ID, first, second, m.rules.Name())
	return &Pairing{Session: sess, First: first, Second: second}
}

// ApplyMove routes a move into the player's session. When the move ends
// the game, the session is removed from all indices within this same call
// and every participant is handed to the requeue algorithm.
func (m *SessionManager) ApplyMove(playerID, sessionID string, payload json.RawMessage) (*MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.byPlayer[playerID]
	if !ok {
		return nil, ErrNotInSession
	}
	if sessionID != "" && sessionID != sid {
		return nil, ErrNotInSession
	}
	sess := m.sessions[sid]
	if sess == nil {
		return nil, ErrNotInSession
	}

	players := sess.Players
	outcome, err := sess.ApplyMove(playerID, payload)
	if err != nil {
		return nil, err
	}

	res := &MoveResult{
		Session: sess,
		Players: players,
		Outcome: outcome,
		View:    sess.State.View(),
	}
	if outcome.Over {
		log.Printf("Session %s finished: %s", sess.ID, outcome.Reason)
		m.teardownLocked(sess)
		res.Placements = make(map[string]*Placement, 2)
		for _, p := range players {
			if p != nil {
				res.Placements[p.PlayerID] = m.requeueLocked(p.PlayerID)
			}
		}
	}
	return res, nil
}

// Remove takes a player out of the engine: out of the queue if still
// waiting, and out of their session if in one, converting the removal into
// a forfeit for the opponent. Calling it again for the same player finds
// nothing and returns nil, which keeps the disconnect path idempotent.
func (m *SessionManager) Remove(playerID string) *Removal {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.Remove(playerID) {
		log.Printf("Player %s removed from %s queue", playerID, m.rules.Name())
	}

	sid, ok := m.byPlayer[playerID]
	if !ok {
		return nil
	}
	sess := m.sessions[sid]
	delete(m.byPlayer, playerID)
	if sess == nil {
		return nil
	}

	survivor := sess.RemoveParticipant(playerID)
	m.teardownLocked(sess)

	rem := &Removal{Session: sess}
	if survivor != nil {
		rem.Opponent = survivor.PlayerID
		rem.Placement = m.requeueLocked(survivor.PlayerID)
	}
	return rem
}

// StartSession advances a paired session to in_progress. Sessions finished
// in the meantime are left alone.
func (m *SessionManager) StartSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess := m.sessions[sessionID]; sess != nil {
		sess.Start()
	}
}

// Snapshot returns the player's current session id and state view, used to
// resynchronize a client after a rejected move.
func (m *SessionManager) Snapshot(playerID string) (string, any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sid, ok := m.byPlayer[playerID]
	if !ok {
		return "", nil, false
	}
	sess := m.sessions[sid]
	if sess == nil {
		return "", nil, false
	}
	return sess.ID, sess.State.View(), true
}

// Stats reports live session count and queue depth for the health endpoint.
func (m *SessionManager) Stats() (sessions, queueDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), m.queue.Len()
}

func (m *SessionManager) createSessionLocked() *GameSession {
	sess := NewGameSession(m.rules)
	m.sessions[sess.ID] = sess
	return sess
}

// teardownLocked removes a session from every index. It runs in the same
// synchronous step that set the session finished.
func (m *SessionManager) teardownLocked(sess *GameSession) {
	delete(m.sessions, sess.ID)
	for pid, sid := range m.byPlayer {
		if sid == sess.ID {
			delete(m.byPlayer, pid)
		}
	}
	if m.waiting == sess {
		m.waiting = nil
	}
}

// requeueLocked is the single requeue routine used for both game-end and
// disconnect triggers: place the player into the open session if one
// exists, otherwise open a new one. The player → session index always maps
// the player to exactly one session when this returns.
func (m *SessionManager) requeueLocked(playerID string) *Placement {
	if m.waiting == nil {
		sess := m.createSessionLocked()
		role, _ := sess.AddParticipant(playerID)
		m.waiting = sess
		m.byPlayer[playerID] = sess.ID
		return &Placement{Session: sess, Status: StatusWaiting, Role: role}
	}

	sess := m.waiting
	role, err := sess.AddParticipant(playerID)
	if err != nil {
		// Open sessions hold exactly one player, so this is unreachable;
		// fall back to a fresh session rather than corrupt the index.
		sess = m.createSessionLocked()
		role, _ = sess.AddParticipant(playerID)
		m.waiting = sess
		m.byPlayer[playerID] = sess.ID
		return &Placement{Session: sess, Status: StatusWaiting, Role: role}
	}

	m.byPlayer[playerID] = sess.ID
	m.waiting = nil
	occupant := sess.Opponent(playerID)
	return &Placement{
		Session:    sess,
		Status:     StatusPaired,
		Role:       role,
		PairedWith: occupant.PlayerID,
	}
}
