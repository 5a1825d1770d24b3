// Package replay re-runs the engine on every turn of a downloaded game and
// compares its choice with the move the snake actually played.
package replay

import (
	"context"
	"math/rand"
	"time"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/rules"
	"github.com/brensch/minisnek/scraper/downloader"
	"github.com/brensch/minisnek/search"
	"github.com/brensch/minisnek/store"
)

type Options struct {
	Search search.Config
	// MoveBudget bounds each decision like a live game would. Zero searches
	// to full depth.
	MoveBudget time.Duration
	// SnakeIDs restricts the analysis; empty means every snake.
	SnakeIDs []string
	Seed     int64
}

type Report struct {
	Rows []store.DecisionRow
	// Skipped counts turns that could not be rebuilt or had no clear move.
	Skipped int
}

// Agreement is the fraction of rows where the engine picked the played move.
func (r Report) Agreement() float64 {
	if len(r.Rows) == 0 {
		return 0
	}
	same := 0
	for _, row := range r.Rows {
		if row.Move == row.Actual {
			same++
		}
	}
	return float64(same) / float64(len(r.Rows))
}

// Analyze decides every turn of g for each selected snake that was alive in
// that frame and records the engine's choice next to the played move. Only
// ctx errors are returned; unusable turns are counted in Skipped.
func Analyze(ctx context.Context, g *downloader.Game, opts Options) (Report, error) {
	var rep Report
	rng := rand.New(rand.NewSource(opts.Seed))
	want := make(map[string]bool, len(opts.SnakeIDs))
	for _, id := range opts.SnakeIDs {
		want[id] = true
	}

	for i := 0; i+1 < len(g.Frames); i++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		cur, next := &g.Frames[i], &g.Frames[i+1]

		state, err := FrameState(g, cur)
		if err != nil {
			rep.Skipped++
			continue
		}

		for _, sn := range state.Snakes {
			if len(want) > 0 && !want[sn.Id] {
				continue
			}
			actual := playedMove(sn, next)
			if !actual.Valid() {
				rep.Skipped++
				continue
			}

			view, _ := rules.Perspective(state, sn.Id)
			d := decide(ctx, view, opts, rng)
			if err := ctx.Err(); err != nil {
				return rep, err
			}

			row := store.NewDecisionRow(store.SourceReplay, g.ID, view, d)
			row.Actual = actual.String()
			rep.Rows = append(rep.Rows, row)
		}
	}
	return rep, nil
}

func decide(ctx context.Context, view *game.GameState, opts Options, rng *rand.Rand) search.Decision {
	if opts.MoveBudget <= 0 {
		return search.Decide(ctx, view, opts.Search, rng)
	}
	dctx, cancel := context.WithTimeout(ctx, opts.MoveBudget)
	defer cancel()
	return search.Decide(dctx, view, opts.Search, rng)
}

// FrameState rebuilds the board of one frame with only the living snakes.
func FrameState(g *downloader.Game, f *downloader.FrameData) (*game.GameState, error) {
	width, height := g.Width, g.Height
	if f.Board.Width > 0 && f.Board.Height > 0 {
		width, height = f.Board.Width, f.Board.Height
	}

	snakes := make([]game.Snake, 0, len(f.Snakes))
	for i := range f.Snakes {
		s := &f.Snakes[i]
		if !s.Alive() {
			continue
		}
		snakes = append(snakes, game.Snake{Id: s.ID, Health: int32(s.Health), Body: points(s.Body)})
	}

	state, err := game.NewGameState(int32(width), int32(height), snakes, points(f.Food))
	if err != nil {
		return nil, err
	}
	state.Turn = int32(f.Turn)
	return state, nil
}

// playedMove derives the move from the snake's head in the next frame.
func playedMove(sn game.Snake, next *downloader.FrameData) rules.Move {
	for i := range next.Snakes {
		s := &next.Snakes[i]
		if s.ID != sn.Id || len(s.Body) == 0 {
			continue
		}
		head := s.Body[0]
		return rules.MoveBetween(sn.Head(), game.Point{X: int32(head.X), Y: int32(head.Y)})
	}
	return rules.NoMove
}

func points(cs []downloader.Coord) []game.Point {
	out := make([]game.Point, len(cs))
	for i, c := range cs {
		out[i] = game.Point{X: int32(c.X), Y: int32(c.Y)}
	}
	return out
}
