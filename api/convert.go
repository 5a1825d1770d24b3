package api

import (
	"fmt"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/rules"
)

// ToGameState converts a request into a validated state seen from the
// requesting snake: it sits at index 0 and the opponent nearest to it at
// index 1 (see rules.Perspective). If the board no longer lists the requesting
// snake, the request's "you" entry is used.
func ToGameState(req *GameRequest) (*game.GameState, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", game.ErrInvalidState)
	}

	snakes := make([]game.Snake, 0, len(req.Board.Snakes)+1)
	onBoard := false
	for _, s := range req.Board.Snakes {
		onBoard = onBoard || s.ID == req.You.ID
		snakes = append(snakes, toSnake(s))
	}
	if !onBoard {
		snakes = append([]game.Snake{toSnake(req.You)}, snakes...)
	}

	food := make([]game.Point, len(req.Board.Food))
	for i, f := range req.Board.Food {
		food[i] = toPoint(f)
	}

	state, err := game.NewGameState(int32(req.Board.Width), int32(req.Board.Height), snakes, food)
	if err != nil {
		return nil, fmt.Errorf("game %s turn %d: %w", req.Game.ID, req.Turn, err)
	}
	state.Turn = int32(req.Turn)

	state, _ = rules.Perspective(state, req.You.ID)
	return state, nil
}

func toSnake(s Battlesnake) game.Snake {
	body := make([]game.Point, len(s.Body))
	for i, b := range s.Body {
		body[i] = toPoint(b)
	}
	return game.Snake{Id: s.ID, Health: int32(s.Health), Body: body}
}

func toPoint(c Coord) game.Point {
	return game.Point{X: int32(c.X), Y: int32(c.Y)}
}
