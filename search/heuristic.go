package search

import (
	"math"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/rules"
)

// Evaluate scores state from player's point of view. A dead player scores -Inf
// and a dead opponent +Inf. Otherwise the player chases food while hungry or
// shorter than some opponent, and maximises its number of legal moves when
// neither holds.
func Evaluate(state *game.GameState, player int, dead []bool, cfg Config) float64 {
	if player < 0 || player >= len(state.Snakes) {
		return math.Inf(-1)
	}
	if player < len(dead) && dead[player] {
		return math.Inf(-1)
	}
	for i, d := range dead {
		if i != player && d {
			return math.Inf(1)
		}
	}

	me := &state.Snakes[player]
	needFood := false
	for i := range state.Snakes {
		if i != player && len(me.Body) < len(state.Snakes[i].Body) {
			needFood = true
			break
		}
	}

	if me.Health < cfg.HealthThreshold || needFood {
		return foodScore(state, player, cfg)
	}
	return float64(len(rules.LegalMoves(state, player)))
}

// foodScore is the best inverse Manhattan distance to any food, discounted for
// food an opponent head is close to, plus health/100. With no food only the
// health term remains.
func foodScore(state *game.GameState, player int, cfg Config) float64 {
	me := &state.Snakes[player]
	head := me.Head()

	best := 0.0
	for _, f := range state.Food {
		inv := 1.0
		if d := head.Manhattan(f); d > 0 {
			inv = 1.0 / float64(d)
		}
		for i := range state.Snakes {
			opp := &state.Snakes[i]
			if i == player || len(opp.Body) == 0 {
				continue
			}
			if opp.Head().Manhattan(f) < cfg.ContestRadius {
				inv /= cfg.ContestDivisor
				break
			}
		}
		best = max(best, inv)
	}

	return best + float64(me.Health)/100.0
}
