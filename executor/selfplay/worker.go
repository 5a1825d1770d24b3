// Package selfplay plays the engine against itself under the local referee.
package selfplay

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/rules"
	"github.com/brensch/minisnek/search"
	"github.com/brensch/minisnek/store"
)

type Config struct {
	Width  int32
	Height int32
	// Snakes is the number of engine-controlled snakes, 2 to 4.
	Snakes int
	// MaxTurns ends the game as a draw once reached. Zero means no limit.
	MaxTurns int
	// MoveTimeout bounds each decision. Zero searches to full depth.
	MoveTimeout time.Duration

	Search search.Config
	Food   rules.FoodSettings
}

func DefaultConfig() Config {
	return Config{
		Width:    11,
		Height:   11,
		Snakes:   2,
		MaxTurns: 500,
		Search:   search.DefaultConfig(),
		Food:     rules.DefaultFoodSettings,
	}
}

type GameResult struct {
	GameID   string
	WinnerId string // empty on a draw
	Turns    int
	Rows     []store.DecisionRow
	Final    *game.GameState
}

// PlayGame runs one game to completion. Every snake decides concurrently from
// its own perspective each turn. onTurn, if set, sees every state after the
// referee has applied the moves. A cancelled ctx aborts the game and returns
// ctx.Err().
func PlayGame(ctx context.Context, cfg Config, rng *rand.Rand, onTurn func(*game.GameState)) (GameResult, error) {
	if cfg.Snakes < 2 || cfg.Snakes > len(startOffsets) {
		return GameResult{}, fmt.Errorf("selfplay needs 2 to %d snakes, got %d", len(startOffsets), cfg.Snakes)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	res := GameResult{GameID: uuid.NewString()}
	state, err := InitialState(cfg, rng)
	if err != nil {
		return res, err
	}

	for !rules.IsGameOver(state) {
		if cfg.MaxTurns > 0 && int(state.Turn) >= cfg.MaxTurns {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		// Seeds are drawn up front so the game is reproducible from rng alone.
		seeds := make([]int64, len(state.Snakes))
		for i := range seeds {
			seeds[i] = rng.Int63()
		}

		moves := make(map[string]rules.Move, len(state.Snakes))
		rows := make([]store.DecisionRow, len(state.Snakes))
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i, s := range state.Snakes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				view, _ := rules.Perspective(state, s.Id)
				d := decide(ctx, cfg, view, rand.New(rand.NewSource(seeds[i])))
				rows[i] = store.NewDecisionRow(store.SourceSelfPlay, res.GameID, view, d)

				mu.Lock()
				moves[s.Id] = d.Move
				mu.Unlock()
			}()
		}
		wg.Wait()

		res.Rows = append(res.Rows, rows...)
		state = rules.NextStateSimultaneousWithFoodSettings(state, moves, rng, cfg.Food)
		if onTurn != nil {
			onTurn(state)
		}
	}

	res.Turns = int(state.Turn)
	res.Final = state
	if len(state.Snakes) == 1 {
		res.WinnerId = state.Snakes[0].Id
	}
	return res, nil
}

func decide(ctx context.Context, cfg Config, view *game.GameState, rng *rand.Rand) search.Decision {
	if cfg.MoveTimeout <= 0 {
		return search.Decide(ctx, view, cfg.Search, rng)
	}
	dctx, cancel := context.WithTimeout(ctx, cfg.MoveTimeout)
	defer cancel()
	return search.Decide(dctx, view, cfg.Search, rng)
}

// startOffsets are the standard-ish corner starts, inset one cell from the
// walls.
var startOffsets = [][2]bool{
	{false, false},
	{true, true},
	{false, true},
	{true, false},
}

// InitialState places cfg.Snakes snakes, each a stacked length-3 body, on
// shuffled corner starts and spawns the minimum food.
func InitialState(cfg Config, rng *rand.Rand) (*game.GameState, error) {
	if cfg.Width < 5 || cfg.Height < 5 {
		return nil, errors.New("selfplay board must be at least 5x5")
	}
	corners := append([][2]bool(nil), startOffsets...)
	rng.Shuffle(len(corners), func(i, j int) { corners[i], corners[j] = corners[j], corners[i] })

	snakes := make([]game.Snake, cfg.Snakes)
	for i := range snakes {
		p := game.Point{X: 1, Y: 1}
		if corners[i][0] {
			p.X = cfg.Width - 2
		}
		if corners[i][1] {
			p.Y = cfg.Height - 2
		}
		snakes[i] = game.Snake{
			Id:     fmt.Sprintf("snake%d", i+1),
			Health: rules.MaxHealth,
			Body:   []game.Point{p, p, p},
		}
	}

	state, err := game.NewGameState(cfg.Width, cfg.Height, snakes, nil)
	if err != nil {
		return nil, err
	}
	rules.ApplyFoodSettings(state, rng, rules.FoodSettings{MinimumFood: max(cfg.Food.MinimumFood, 1)})
	return state, nil
}
