// Package chess adapts the notnil/chess rule library to the engine's
// Rules interface. Legality, check detection and draw bookkeeping all come
// from the library; this package only translates moves and outcomes.
package chess

import (
	"encoding/json"
	"fmt"

	lib "github.com/notnil/chess"

	"matchboard-server/internal/game"
)

// InfiniteTimeMs is the "no limit" sentinel used on the wire in place of a
// non-finite number, for interoperability with strict JSON parsers.
const InfiniteTimeMs = 999999999

// State wraps a live chess game. Untimed for now; the time fields in the
// view carry the sentinel until time controls land.
type State struct {
	game *lib.Game
}

// View returns the wire snapshot: FEN plus turn and time fields.
func (s *State) View() any {
	turn := "white"
	if s.game.Position().Turn() == lib.Black {
		turn = "black"
	}
	return StateView{
		FEN:                  s.game.FEN(),
		CurrentTurn:          turn,
		TimeControlPreset:    "none",
		TimeWhiteRemainingMs: InfiniteTimeMs,
		TimeBlackRemainingMs: InfiniteTimeMs,
	}
}

// tygo:generate
type StateView struct {
	FEN                  string `json:"fen"`
	CurrentTurn          string `json:"currentTurn"`
	TimeControlPreset    string `json:"timeControlPreset"`
	TimeWhiteRemainingMs int64  `json:"timeWhiteRemainingMs"`
	TimeBlackRemainingMs int64  `json:"timeBlackRemainingMs"`
}

// MoveRequest is the move descriptor for this variant: a UCI move string
// such as "e2e4".
// tygo:generate
type MoveRequest struct {
	Move string `json:"move"`
}

// Rules implements game.Rules for chess.
type Rules struct{}

func New() Rules {
	return Rules{}
}

func (Rules) Name() string {
	return "chess"
}

func (Rules) RoleName(r game.Role) string {
	if r == game.RoleFirst {
		return "white"
	}
	return "black"
}

func (Rules) NewState() game.State {
	return &State{game: lib.NewGame()}
}

// Apply parses a UCI move and pushes it through the library. The library
// leaves the position untouched when the move is illegal, so rejections
// preserve the pre-move state.
func (Rules) Apply(s game.State, r game.Role, payload json.RawMessage) (game.State, error) {
	state, ok := s.(*State)
	if !ok {
		return nil, fmt.Errorf("chess: unexpected state type %T", s)
	}

	var req MoveRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Move == "" {
		return nil, game.Reject("Invalid move format")
	}

	mv, err := lib.UCINotation{}.Decode(state.game.Position(), req.Move)
	if err != nil {
		return nil, game.Reject("Illegal move")
	}
	if err := state.game.Move(mv); err != nil {
		return nil, game.Reject("Illegal move")
	}

	return state, nil
}

// Outcome maps the library's result to the engine's. Checkmate produces a
// win; stalemate, insufficient material, repetition and the 75-move rule
// all produce a draw. Draw offers and resignations never originate from
// the library here, so every decided game has a method.
func (Rules) Outcome(s game.State) game.Outcome {
	state := s.(*State)

	switch state.game.Outcome() {
	case lib.NoOutcome:
		return game.Outcome{}
	case lib.WhiteWon:
		return game.Outcome{Over: true, Winner: game.RoleFirst, Reason: reason(state.game.Method())}
	case lib.BlackWon:
		return game.Outcome{Over: true, Winner: game.RoleSecond, Reason: reason(state.game.Method())}
	default:
		return game.Outcome{Over: true, Draw: true, Reason: reason(state.game.Method())}
	}
}

func reason(m lib.Method) string {
	switch m {
	case lib.Checkmate:
		return "Checkmate"
	case lib.Stalemate:
		return "Stalemate"
	case lib.InsufficientMaterial:
		return "Insufficient material"
	case lib.FivefoldRepetition:
		return "Fivefold repetition"
	case lib.SeventyFiveMoveRule:
		return "Seventy-five move rule"
	default:
		return "Draw"
	}
}
