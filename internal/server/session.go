package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"matchboard-server/internal/game"
)

type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusPaired     SessionStatus = "paired"
	StatusInProgress SessionStatus = "in_progress"
	StatusFinished   SessionStatus = "finished"
)

// Participant is one of a session's two slots. The slot index equals the
// participant's role: slot 0 is the first mover.
type Participant struct {
	PlayerID string
	Role     game.Role
}

// GameSession is the per-pair state machine. Status only ever moves forward
// along waiting → paired → in_progress → finished, and finished is
// absorbing: no mutation is possible once it is entered.
type GameSession struct {
	ID        string
	Rules     game.Rules
	State     game.State
	Players   [2]*Participant
	Status    SessionStatus
	Turn      game.Role // current turn owner
	MoveCount int
	Resigned  bool // finished by removal rather than by the rules
	Outcome   game.Outcome
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewGameSession(rules game.Rules) *GameSession {
	now := time.Now()
	return &GameSession{
		ID:        uuid.New().String(),
		Rules:     rules,
		State:     rules.NewState(),
		Status:    StatusWaiting,
		Turn:      game.RoleFirst,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddParticipant fills the first empty slot and returns the assigned role.
// Filling the second slot advances the session to paired.
func (s *GameSession) AddParticipant(playerID string) (game.Role, error) {
	if s.Status == StatusFinished {
		return 0, ErrGameFinished
	}
	for i := range s.Players {
		if s.Players[i] == nil {
			role := game.Role(i)
			s.Players[i] = &Participant{PlayerID: playerID, Role: role}
			if s.IsFull() {
				s.Status = StatusPaired
			}
			s.UpdatedAt = time.Now()
			return role, nil
		}
	}
	return 0, ErrRoomFull
}

// Start advances a paired session to in_progress. No-op in any other state,
// so a session finished between pairing and start stays finished.
func (s *GameSession) Start() {
	if s.Status == StatusPaired {
		s.Status = StatusInProgress
		s.UpdatedAt = time.Now()
	}
}

// Participant returns the slot occupied by the given player, or nil.
func (s *GameSession) Participant(playerID string) *Participant {
	for _, p := range s.Players {
		if p != nil && p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// Opponent returns the slot opposite the given participant. Nil when the
// player is not in the session, or when the other slot is empty.
func (s *GameSession) Opponent(playerID string) *Participant {
	p := s.Participant(playerID)
	if p == nil {
		return nil
	}
	return s.Players[p.Role.Opponent()]
}

func (s *GameSession) IsFull() bool {
	return s.Players[0] != nil && s.Players[1] != nil
}

func (s *GameSession) IsEmpty() bool {
	return s.Players[0] == nil && s.Players[1] == nil
}

// ApplyMove validates a move by the given player and, if the rule engine
// accepts it, commits the new state, flips the turn owner and evaluates
// terminal conditions. Every mutation happens before the method returns;
// nothing here touches a socket.
func (s *GameSession) ApplyMove(playerID string, payload json.RawMessage) (game.Outcome, error) {
	if s.Status == StatusFinished {
		return game.Outcome{}, ErrGameFinished
	}
	if s.Status != StatusInProgress {
		return game.Outcome{}, ErrGameNotStarted
	}

	p := s.Participant(playerID)
	if p == nil {
		return game.Outcome{}, ErrNotInSession
	}
	if p.Role != s.Turn {
		return game.Outcome{}, ErrNotYourTurn
	}

	newState, err := s.Rules.Apply(s.State, p.Role, payload)
	if err != nil {
		// Rejections leave the state untouched; the caller echoes the
		// current snapshot back to the sender.
		return game.Outcome{}, err
	}

	s.State = newState
	s.MoveCount++
	s.Turn = s.Turn.Opponent()
	s.UpdatedAt = time.Now()

	outcome := s.Rules.Outcome(s.State)
	if outcome.Over {
		s.Outcome = outcome
		s.Status = StatusFinished
	}
	return outcome, nil
}

// RemoveParticipant clears the player's slot. An emptied session finishes
// as abandoned; a session that still holds the opponent finishes as
// resigned-by-removal, and the survivor is returned for requeueing.
func (s *GameSession) RemoveParticipant(playerID string) *Participant {
	for i, p := range s.Players {
		if p != nil && p.PlayerID == playerID {
			s.Players[i] = nil
		}
	}

	survivor := (*Participant)(nil)
	for _, p := range s.Players {
		if p != nil {
			survivor = p
		}
	}

	if s.Status != StatusFinished {
		if survivor != nil && s.Status != StatusWaiting {
			s.Resigned = true
		}
		s.Status = StatusFinished
		s.UpdatedAt = time.Now()
	}
	return survivor
}

// WinnerID resolves the outcome's winner role to a player id using the
// given participant list (the session's own slots may already be cleared
// during teardown).
func WinnerID(players [2]*Participant, o game.Outcome) string {
	if !o.Over || o.Draw {
		return ""
	}
	p := players[o.Winner]
	if p == nil {
		return ""
	}
	return p.PlayerID
}
