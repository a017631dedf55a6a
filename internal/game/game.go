// Package game defines the boundary between the session engine and the
// per-variant rule engines. The server only ever sees this interface; the
// concrete legality checks live in internal/tictactoe and internal/chess.
package game

import "encoding/json"

// Role identifies a participant's side within a session. RoleFirst is the
// first mover (white, or X) and is always assigned to the first player
// paired into the session.
type Role int

const (
	RoleFirst Role = iota
	RoleSecond
)

// Opponent returns the other role.
func (r Role) Opponent() Role {
	if r == RoleFirst {
		return RoleSecond
	}
	return RoleFirst
}

// State is the opaque game-state blob owned by a session. View returns the
// wire representation sent to clients in state snapshots.
type State interface {
	View() any
}

// Outcome is the result of terminal evaluation after an accepted move.
// Exactly one of the three cases holds: not over, a win with a designated
// winner, or a draw.
type Outcome struct {
	Over   bool
	Draw   bool
	Winner Role
	Reason string
}

// Rules is the pure move-legality engine consumed by a session.
// Apply must leave the state untouched when it rejects a move; rejections
// are reported as *RejectedError so the caller can distinguish an illegal
// move from an internal failure.
type Rules interface {
	// Name is the variant identifier used on the wire ("chess", "tictactoe").
	Name() string

	// RoleName maps a role to the variant's label for it ("white"/"X", ...).
	RoleName(r Role) string

	// NewState returns the initial position.
	NewState() State

	// Apply validates and applies a move by the given role. The payload is
	// the game-specific move descriptor straight off the wire.
	Apply(s State, r Role, payload json.RawMessage) (State, error)

	// Outcome evaluates terminal conditions. Decisive wins are checked
	// before any draw condition, so the result is deterministic and total.
	Outcome(s State) Outcome
}

// RejectedError reports a move refused by a rule engine.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}

// Reject builds a rejection with a human-readable reason.
func Reject(reason string) *RejectedError {
	return &RejectedError{Reason: reason}
}
