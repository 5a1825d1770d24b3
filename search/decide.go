package search

import (
	"context"
	"math/rand"
	"time"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/rules"
)

// Fallback reasons reported in a Decision.
const (
	FallbackNone    = ""
	FallbackRandom  = "random"
	FallbackDefault = "default"
)

// Decision is the move we answer with plus how it was reached.
type Decision struct {
	Move     rules.Move
	Result   Result
	Fallback string
}

// String returns the Battlesnake API label for the decision.
func (d Decision) String() string {
	return rules.MoveToString(d.Move)
}

// Decide searches state and always produces a direction. If the search yields
// no move, a legal move is picked uniformly at random with rng; if there is no
// legal move at all the default direction is used. A nil rng is seeded from
// the clock.
func Decide(ctx context.Context, state *game.GameState, cfg Config, rng *rand.Rand) Decision {
	res := NewSearcher(cfg).Search(ctx, state)
	d := Decision{Move: res.Move, Result: res}
	if res.Move.Valid() {
		return d
	}

	var legal []rules.Move
	if len(state.Snakes) > 0 {
		legal = rules.LegalMoves(state, 0)
	}
	if len(legal) == 0 {
		d.Move = rules.DefaultMove
		d.Fallback = FallbackDefault
		return d
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	d.Move = legal[rng.Intn(len(legal))]
	d.Fallback = FallbackRandom
	return d
}
