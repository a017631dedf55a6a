// Package tictactoe implements the three-in-a-row rule engine.
package tictactoe

import (
	"encoding/json"
	"fmt"

	"matchboard-server/internal/game"
)

// Cell values on the board.
type Cell int

const (
	Empty Cell = iota
	X
	O
)

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return "EMPTY"
	}
}

// winning line indices: rows, columns, diagonals
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// State is a 9-cell board, indexed row-major from the top left.
type State struct {
	Board [9]Cell
}

// View returns the wire form of the board.
func (s *State) View() any {
	board := make([]string, 9)
	for i, c := range s.Board {
		board[i] = c.String()
	}
	return BoardView{Board: board}
}

// tygo:generate
type BoardView struct {
	Board []string `json:"board"`
}

// MoveRequest is the move descriptor for this variant.
// tygo:generate
type MoveRequest struct {
	Position *int `json:"position"`
}

// Rules implements game.Rules for three-in-a-row.
type Rules struct{}

func New() Rules {
	return Rules{}
}

func (Rules) Name() string {
	return "tictactoe"
}

func (Rules) RoleName(r game.Role) string {
	if r == game.RoleFirst {
		return "X"
	}
	return "O"
}

func (Rules) NewState() game.State {
	return &State{}
}

func mark(r game.Role) Cell {
	if r == game.RoleFirst {
		return X
	}
	return O
}

// Apply validates a move against the current board. The board is only
// mutated once every check has passed, so a rejection echoes the pre-move
// state exactly.
func (Rules) Apply(s game.State, r game.Role, payload json.RawMessage) (game.State, error) {
	state, ok := s.(*State)
	if !ok {
		return nil, fmt.Errorf("tictactoe: unexpected state type %T", s)
	}

	var req MoveRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Position == nil {
		return nil, game.Reject("Invalid position")
	}

	pos := *req.Position
	if pos < 0 || pos > 8 {
		return nil, game.Reject(fmt.Sprintf("Position %d out of range", pos))
	}
	if state.Board[pos] != Empty {
		return nil, game.Reject(fmt.Sprintf("Position %d already occupied", pos))
	}

	state.Board[pos] = mark(r)
	return state, nil
}

// Outcome scans the eight winning lines before considering the board-full
// draw, so a decisive win always takes precedence.
func (Rules) Outcome(s game.State) game.Outcome {
	state := s.(*State)

	for _, ln := range lines {
		a := state.Board[ln[0]]
		if a != Empty && a == state.Board[ln[1]] && a == state.Board[ln[2]] {
			winner := game.RoleFirst
			if a == O {
				winner = game.RoleSecond
			}
			return game.Outcome{Over: true, Winner: winner, Reason: "Three in a row"}
		}
	}

	for _, c := range state.Board {
		if c == Empty {
			return game.Outcome{}
		}
	}
	return game.Outcome{Over: true, Draw: true, Reason: "Board full"}
}
