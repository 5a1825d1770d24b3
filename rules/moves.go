package rules

import "github.com/brensch/minisnek/game"

// Move is one of the four cardinal steps. The numeric values double as the
// policy labels written to the decision log.
type Move int

const (
	MoveUp    Move = 0
	MoveDown  Move = 1
	MoveLeft  Move = 2
	MoveRight Move = 3

	// NoMove is returned by the search when the mover had nothing to play.
	NoMove Move = -1
)

// moveOrder is the enumeration order for legal moves. Ties in the search are
// broken in favour of the earlier entry.
var moveOrder = [4]Move{MoveLeft, MoveRight, MoveDown, MoveUp}

// AllMoves returns the four moves in enumeration order.
func AllMoves() []Move {
	out := make([]Move, len(moveOrder))
	copy(out, moveOrder[:])
	return out
}

// Delta returns the unit step vector for m. NoMove and unknown values map to
// the zero vector.
func (m Move) Delta() game.Point {
	switch m {
	case MoveUp:
		return game.Point{X: 0, Y: 1}
	case MoveDown:
		return game.Point{X: 0, Y: -1}
	case MoveLeft:
		return game.Point{X: -1, Y: 0}
	case MoveRight:
		return game.Point{X: 1, Y: 0}
	default:
		return game.Point{}
	}
}

// Valid reports whether m is one of the four cardinal moves.
func (m Move) Valid() bool {
	return m >= MoveUp && m <= MoveRight
}

func (m Move) String() string {
	switch m {
	case MoveUp:
		return "up"
	case MoveDown:
		return "down"
	case MoveLeft:
		return "left"
	case MoveRight:
		return "right"
	default:
		return "none"
	}
}

// MoveFromDelta maps a unit step vector back to a Move, or NoMove.
func MoveFromDelta(d game.Point) Move {
	for _, m := range moveOrder {
		if m.Delta() == d {
			return m
		}
	}
	return NoMove
}

// MoveBetween returns the move that takes a head from one cell to an adjacent
// one, or NoMove if the cells are not neighbours.
func MoveBetween(from, to game.Point) Move {
	return MoveFromDelta(game.Point{X: to.X - from.X, Y: to.Y - from.Y})
}

// DefaultMove is emitted whenever no better direction is available.
const DefaultMove = MoveUp

// MoveToString converts a move to its Battlesnake API label. Anything that is
// not a cardinal move becomes the default direction.
func MoveToString(m Move) string {
	if !m.Valid() {
		return DefaultMove.String()
	}
	return m.String()
}
