// Package rules implements move generation, single-snake transitions and
// death detection for the search, plus a simultaneous-move referee used when
// playing full games locally.
package rules

import (
	"math/rand"

	"github.com/brensch/minisnek/game"
)

const MaxHealth int32 = 100

// LegalMoves returns the moves for the snake at index that keep its head on
// the board and off every body cell currently on the board.
//
// Tails are not exempted even though they vacate this turn; the search relies
// on this conservative view.
func LegalMoves(state *game.GameState, index int) []Move {
	if index < 0 || index >= len(state.Snakes) {
		return []Move{}
	}
	you := &state.Snakes[index]
	if len(you.Body) == 0 {
		return []Move{}
	}

	head := you.Head()
	moves := make([]Move, 0, 4)
	for _, m := range moveOrder {
		if isSafe(state, head.Add(m.Delta())) {
			moves = append(moves, m)
		}
	}
	return moves
}

func isSafe(state *game.GameState, p game.Point) bool {
	if !state.InBounds(p) {
		return false
	}
	return !state.Occupied(p)
}

// ApplyMove returns the state after the snake at index takes one step. The
// input is not modified. No legality checks happen here.
func ApplyMove(state *game.GameState, index int, move Move) *game.GameState {
	newState := state.Clone()
	if index < 0 || index >= len(newState.Snakes) || !move.Valid() {
		return newState
	}

	you := &newState.Snakes[index]
	if len(you.Body) == 0 {
		return newState
	}

	newHead := you.Head().Add(move.Delta())

	newBody := make([]game.Point, 0, len(you.Body)+1)
	newBody = append(newBody, newHead)
	newBody = append(newBody, you.Body...)

	you.Health--
	if you.Health < 0 {
		you.Health = 0
	}

	if removeFood(newState, newHead) {
		you.Health = MaxHealth
	} else {
		newBody = newBody[:len(newBody)-1]
	}
	you.Body = newBody

	return newState
}

// removeFood drops food at p and reports whether there was any.
func removeFood(state *game.GameState, p game.Point) bool {
	for i, f := range state.Food {
		if f == p {
			state.Food = append(state.Food[:i], state.Food[i+1:]...)
			return true
		}
	}
	return false
}

// DeadSnakes flags the snakes that are dead in state. legal holds the current
// legal move sets for the first len(legal) snakes; snakes past that are only
// checked for starvation and head collisions.
//
// On a head collision the strictly longer snake survives; equal lengths kill
// both.
func DeadSnakes(state *game.GameState, legal [][]Move) []bool {
	dead := make([]bool, len(state.Snakes))

	for i := range state.Snakes {
		si := &state.Snakes[i]
		if len(si.Body) == 0 {
			continue
		}
		for j := range state.Snakes {
			sj := &state.Snakes[j]
			if i == j || len(sj.Body) == 0 {
				continue
			}
			if si.Head() == sj.Head() {
				if len(si.Body) > len(sj.Body) {
					dead[j] = true
				} else {
					dead[i] = true
				}
			}
		}
	}

	for i := range state.Snakes {
		if i < len(legal) && len(legal[i]) == 0 {
			dead[i] = true
		}
		if state.Snakes[i].Health <= 0 {
			dead[i] = true
		}
	}

	return dead
}

// NextStateSimultaneous advances every snake at once using the standard
// Battlesnake rules and drops the snakes that die. Snakes without an entry in
// moves are eliminated.
func NextStateSimultaneous(state *game.GameState, moves map[string]Move) *game.GameState {
	return NextStateSimultaneousWithFoodSettings(state, moves, nil, FoodSettings{})
}

// NextStateSimultaneousWithFoodSettings is NextStateSimultaneous followed by
// food spawning. A nil rng spawns deterministically from the state.
func NextStateSimultaneousWithFoodSettings(state *game.GameState, moves map[string]Move, rng *rand.Rand, settings FoodSettings) *game.GameState {
	newState := state.Clone()
	newState.Turn++

	// 1. Move heads, eat, shrink.
	newHeads := make(map[string]game.Point, len(newState.Snakes))
	for i := range newState.Snakes {
		s := &newState.Snakes[i]
		if s.Health <= 0 || len(s.Body) == 0 {
			continue
		}
		move, ok := moves[s.Id]
		if !ok || !move.Valid() {
			continue
		}
		newHeads[s.Id] = s.Head().Add(move.Delta())
	}

	eaten := make(map[game.Point]bool)
	for i := range newState.Snakes {
		s := &newState.Snakes[i]
		newHead, ok := newHeads[s.Id]
		if !ok {
			s.Health = 0
			continue
		}

		newBody := make([]game.Point, 0, len(s.Body)+1)
		newBody = append(newBody, newHead)
		newBody = append(newBody, s.Body...)

		if newState.HasFood(newHead) {
			eaten[newHead] = true
			s.Health = MaxHealth
		} else {
			s.Health--
			newBody = newBody[:len(newBody)-1]
		}
		s.Body = newBody
	}

	if len(eaten) > 0 {
		remaining := newState.Food[:0]
		for _, f := range newState.Food {
			if !eaten[f] {
				remaining = append(remaining, f)
			}
		}
		newState.Food = remaining
	}

	// 2. Eliminations, evaluated against the post-move bodies.
	dead := make(map[string]bool)
	for i := range newState.Snakes {
		s := &newState.Snakes[i]
		if s.Health <= 0 {
			dead[s.Id] = true
			continue
		}
		head := s.Head()
		if !newState.InBounds(head) {
			dead[s.Id] = true
			continue
		}
		for j := range newState.Snakes {
			other := &newState.Snakes[j]
			if other.Health <= 0 {
				continue
			}
			// Index 0 is a head; head-to-head is resolved below.
			for k := 1; k < len(other.Body); k++ {
				if other.Body[k] == head {
					dead[s.Id] = true
				}
			}
		}
	}

	for i := 0; i < len(newState.Snakes); i++ {
		s1 := &newState.Snakes[i]
		if s1.Health <= 0 {
			continue
		}
		for j := i + 1; j < len(newState.Snakes); j++ {
			s2 := &newState.Snakes[j]
			if s2.Health <= 0 {
				continue
			}
			if s1.Head() != s2.Head() {
				continue
			}
			switch {
			case len(s1.Body) > len(s2.Body):
				dead[s2.Id] = true
			case len(s2.Body) > len(s1.Body):
				dead[s1.Id] = true
			default:
				dead[s1.Id] = true
				dead[s2.Id] = true
			}
		}
	}

	alive := make([]game.Snake, 0, len(newState.Snakes))
	for _, s := range newState.Snakes {
		if dead[s.Id] {
			continue
		}
		alive = append(alive, s)
	}
	newState.Snakes = alive

	applyFoodRules(newState, rng, settings, 0x4D4F5645) // "MOVE"
	return newState
}

// IsGameOver reports whether at most one snake is left.
func IsGameOver(state *game.GameState) bool {
	living := 0
	for _, s := range state.Snakes {
		if s.Health > 0 {
			living++
		}
	}
	return living <= 1
}

// Perspective returns a clone of state seen from the snake with id: that snake
// moves to index 0 and the opponent whose head is nearest to its head moves to
// index 1, the slot the search tracks. Other snakes keep their relative order,
// as do opponents at equal distance. The second return is false if no such
// snake exists.
func Perspective(state *game.GameState, id string) (*game.GameState, bool) {
	out := state.Clone()
	idx := -1
	for i := range out.Snakes {
		if out.Snakes[i].Id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return out, false
	}
	out.YouId = id

	ordered := make([]game.Snake, 0, len(out.Snakes))
	ordered = append(ordered, out.Snakes[idx])
	ordered = append(ordered, out.Snakes[:idx]...)
	ordered = append(ordered, out.Snakes[idx+1:]...)

	if len(ordered[0].Body) > 0 {
		head := ordered[0].Head()
		best := -1
		var bestDist int32
		for i := 1; i < len(ordered); i++ {
			if len(ordered[i].Body) == 0 {
				continue
			}
			if d := head.Manhattan(ordered[i].Head()); best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		if best > 1 {
			near := ordered[best]
			copy(ordered[2:best+1], ordered[1:best])
			ordered[1] = near
		}
	}
	out.Snakes = ordered
	return out, true
}
