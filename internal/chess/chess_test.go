package chess

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"matchboard-server/internal/game"
)

func uci(mv string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"move":%q}`, mv))
}

func TestApply_AcceptsLegalMove(t *testing.T) {
	r := New()
	s := r.NewState()

	s, err := r.Apply(s, game.RoleFirst, uci("e2e4"))
	assert.NoError(t, err)

	view := s.View().(StateView)
	assert.Equal(t, "black", view.CurrentTurn)
	assert.Contains(t, view.FEN, "4P3") // pawn on e4
}

func TestApply_RejectsIllegalMove(t *testing.T) {
	r := New()
	s := r.NewState()

	before := s.View().(StateView).FEN

	// Rook is boxed in at the start
	_, err := r.Apply(s, game.RoleFirst, uci("a1a5"))
	var rejected *game.RejectedError
	assert.ErrorAs(t, err, &rejected)

	// Rejection leaves the position untouched
	assert.Equal(t, before, s.View().(StateView).FEN)
}

func TestApply_RejectsMalformedPayload(t *testing.T) {
	r := New()
	s := r.NewState()

	for _, payload := range []string{`{}`, `{"move":"zz99"}`, `not json`} {
		_, err := r.Apply(s, game.RoleFirst, json.RawMessage(payload))
		var rejected *game.RejectedError
		assert.ErrorAs(t, err, &rejected)
	}
}

func TestOutcome_FoolsMate(t *testing.T) {
	r := New()
	s := r.NewState()

	moves := []struct {
		role game.Role
		mv   string
	}{
		{game.RoleFirst, "f2f3"},
		{game.RoleSecond, "e7e5"},
		{game.RoleFirst, "g2g4"},
		{game.RoleSecond, "d8h4"},
	}

	for _, m := range moves {
		var err error
		s, err = r.Apply(s, m.role, uci(m.mv))
		assert.NoError(t, err, "move %s", m.mv)
	}

	outcome := r.Outcome(s)
	assert.True(t, outcome.Over)
	assert.False(t, outcome.Draw)
	assert.Equal(t, game.RoleSecond, outcome.Winner)
	assert.Equal(t, "Checkmate", outcome.Reason)
}

func TestOutcome_NotOverAtStart(t *testing.T) {
	r := New()
	assert.False(t, r.Outcome(r.NewState()).Over)
}

func TestView_TimeSentinel(t *testing.T) {
	r := New()
	view := r.NewState().View().(StateView)

	// "No limit" is a large finite number, never Inf/NaN, so strict JSON
	// parsers on the client side stay happy.
	assert.Equal(t, int64(InfiniteTimeMs), view.TimeWhiteRemainingMs)
	assert.Equal(t, int64(InfiniteTimeMs), view.TimeBlackRemainingMs)
	assert.Equal(t, "none", view.TimeControlPreset)
	assert.Equal(t, "white", view.CurrentTurn)
}

func TestRoleNames(t *testing.T) {
	r := New()
	assert.Equal(t, "white", r.RoleName(game.RoleFirst))
	assert.Equal(t, "black", r.RoleName(game.RoleSecond))
	assert.Equal(t, "chess", r.Name())
}
