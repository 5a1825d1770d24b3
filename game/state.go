// Package game defines the board state the search engine works on.
//
// A GameState is treated as an immutable value: the rules package never
// mutates a state it is given, it returns a fresh clone instead. Snake index 0
// is always the snake we control; the remaining snakes are opponents.
package game

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a snapshot's geometry is inconsistent.
var ErrInvalidState = errors.New("invalid game state")

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int32
	Y int32
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Manhattan returns the L1 distance between p and q.
func (p Point) Manhattan(q Point) int32 {
	return abs32(p.X-q.X) + abs32(p.Y-q.Y)
}

type Snake struct {
	Id     string
	Health int32
	Body   []Point
}

// Head returns the first body cell. The body must not be empty.
func (s *Snake) Head() Point {
	return s.Body[0]
}

func (s *Snake) Length() int {
	return len(s.Body)
}

// GameState is a board snapshot: dimensions, snakes (ours first) and food.
type GameState struct {
	Width  int32
	Height int32
	Snakes []Snake
	Food   []Point
	YouId  string
	Turn   int32
}

// NewGameState builds a validated state. Snakes and food are copied so the
// caller keeps ownership of its slices.
func NewGameState(width, height int32, snakes []Snake, food []Point) (*GameState, error) {
	s := &GameState{
		Width:  width,
		Height: height,
		Snakes: snakes,
		Food:   food,
	}
	if len(snakes) > 0 {
		s.YouId = snakes[0].Id
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Validate checks that every body and food cell lies on the board.
func (s *GameState) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidState)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidState, s.Width, s.Height)
	}
	if len(s.Snakes) == 0 {
		return fmt.Errorf("%w: no snakes", ErrInvalidState)
	}
	for i := range s.Snakes {
		sn := &s.Snakes[i]
		if len(sn.Body) == 0 {
			return fmt.Errorf("%w: snake %d (%s) has an empty body", ErrInvalidState, i, sn.Id)
		}
		for _, p := range sn.Body {
			if !s.InBounds(p) {
				return fmt.Errorf("%w: snake %d (%s) cell (%d,%d) outside %dx%d board",
					ErrInvalidState, i, sn.Id, p.X, p.Y, s.Width, s.Height)
			}
		}
	}
	seen := make(map[Point]struct{}, len(s.Food))
	for _, f := range s.Food {
		if !s.InBounds(f) {
			return fmt.Errorf("%w: food (%d,%d) outside %dx%d board", ErrInvalidState, f.X, f.Y, s.Width, s.Height)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("%w: duplicate food (%d,%d)", ErrInvalidState, f.X, f.Y)
		}
		seen[f] = struct{}{}
	}
	return nil
}

// InBounds reports whether p is on the board.
func (s *GameState) InBounds(p Point) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

// You returns our snake, or nil if the state has no snakes.
func (s *GameState) You() *Snake {
	if len(s.Snakes) == 0 {
		return nil
	}
	return &s.Snakes[0]
}

// HasFood reports whether p holds food.
func (s *GameState) HasFood(p Point) bool {
	for _, f := range s.Food {
		if f == p {
			return true
		}
	}
	return false
}

// Occupied reports whether any snake body covers p.
func (s *GameState) Occupied(p Point) bool {
	for i := range s.Snakes {
		for _, bp := range s.Snakes[i].Body {
			if bp == p {
				return true
			}
		}
	}
	return false
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := &GameState{
		Width:  s.Width,
		Height: s.Height,
		YouId:  s.YouId,
		Turn:   s.Turn,
	}

	if len(s.Food) > 0 {
		out.Food = make([]Point, len(s.Food))
		copy(out.Food, s.Food)
	}

	if len(s.Snakes) > 0 {
		out.Snakes = make([]Snake, len(s.Snakes))
		for i := range s.Snakes {
			out.Snakes[i] = Snake{Id: s.Snakes[i].Id, Health: s.Snakes[i].Health}
			if len(s.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(s.Snakes[i].Body))
				copy(out.Snakes[i].Body, s.Snakes[i].Body)
			}
		}
	}

	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
