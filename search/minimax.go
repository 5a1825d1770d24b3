// Package search picks our snake's move with a depth-limited alternating
// minimax over the rules package.
//
// Snakes take turns in the tree instead of moving simultaneously: our snake
// (index 0, maximising) moves, then the tracked opponent (index 1, minimising)
// moves against our already-advanced position, and so on. This is an
// approximation of real Battlesnake turns. Any further opponents stay on the
// board as static obstacles.
package search

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/rules"
)

// Result is the outcome of one search.
type Result struct {
	Score   float64
	Move    rules.Move
	Depth   int // deepest fully searched depth, 0 if none completed
	Nodes   int64
	Elapsed time.Duration
}

// Searcher runs a single decision. It is not reused across turns.
type Searcher struct {
	cfg   Config
	prune bool
	nodes atomic.Int64
}

func NewSearcher(cfg Config) *Searcher {
	return &Searcher{cfg: cfg, prune: true}
}

// Minimax runs the same search with pruning disabled. It visits every node and
// exists as a reference for the pruned search.
func Minimax(ctx context.Context, state *game.GameState, cfg Config) Result {
	s := &Searcher{cfg: cfg}
	return s.Search(ctx, state)
}

// Search returns the best move for snake 0. When ctx carries a deadline the
// search deepens one ply at a time and keeps the deepest completed result;
// otherwise it goes straight to the configured depth. Move is NoMove if no
// depth completed or our snake has nothing to play.
func (s *Searcher) Search(ctx context.Context, state *game.GameState) Result {
	start := time.Now()
	res := Result{Score: math.Inf(-1), Move: rules.NoMove}

	if len(state.Snakes) == 0 {
		return res
	}

	if len(state.Snakes) == 1 {
		res.Score, res.Move = s.greedy(state)
		res.Depth = 1
		res.Nodes = s.nodes.Load()
		res.Elapsed = time.Since(start)
		return res
	}

	first := s.cfg.Depth
	if _, ok := ctx.Deadline(); ok {
		first = 1
	}
	for depth := first; depth <= s.cfg.Depth; depth++ {
		score, move, err := s.searchRoot(ctx, state, depth)
		if err != nil {
			break
		}
		res.Score, res.Move, res.Depth = score, move, depth
		if math.IsInf(score, 0) {
			// Forced win or loss; deeper search cannot change it.
			break
		}
	}

	res.Nodes = s.nodes.Load()
	res.Elapsed = time.Since(start)
	return res
}

// greedy is the one-ply lookahead used when we are alone on the board.
func (s *Searcher) greedy(state *game.GameState) (float64, rules.Move) {
	best := math.Inf(-1)
	bestMove := rules.NoMove
	for _, m := range rules.LegalMoves(state, 0) {
		s.nodes.Add(1)
		next := rules.ApplyMove(state, 0, m)
		dead := rules.DeadSnakes(next, [][]rules.Move{rules.LegalMoves(next, 0)})
		score := Evaluate(next, 0, dead, s.cfg)
		if bestMove == rules.NoMove || score > best {
			best, bestMove = score, m
		}
	}
	return best, bestMove
}

func (s *Searcher) searchRoot(ctx context.Context, root *game.GameState, depth int) (float64, rules.Move, error) {
	legal := [2][]rules.Move{rules.LegalMoves(root, 0), rules.LegalMoves(root, 1)}
	dead := rules.DeadSnakes(root, legal[:])

	if !s.cfg.Parallel || dead[0] || dead[1] || len(legal[0]) < 2 {
		return s.minimax(ctx, root, depth, 0, legal, dead, math.Inf(-1), math.Inf(1))
	}

	// Each root move gets a full window so its value is exact; merging in
	// enumeration order then matches the serial result.
	s.nodes.Add(1)
	scores := make([]float64, len(legal[0]))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range legal[0] {
		g.Go(func() error {
			score, err := s.child(gctx, root, depth, 0, m, legal, math.Inf(-1), math.Inf(1))
			scores[i] = score
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, rules.NoMove, err
	}

	best := math.Inf(-1)
	bestMove := rules.NoMove
	for i, m := range legal[0] {
		if bestMove == rules.NoMove || scores[i] > best {
			best, bestMove = scores[i], m
		}
	}
	return best, bestMove, nil
}

// minimax returns the value of state with mover to play. legal carries each
// tracked snake's move set; dead is the terminal status of state.
func (s *Searcher) minimax(ctx context.Context, state *game.GameState, depth, mover int, legal [2][]rules.Move, dead []bool, alpha, beta float64) (float64, rules.Move, error) {
	s.nodes.Add(1)
	select {
	case <-ctx.Done():
		return 0, rules.NoMove, ctx.Err()
	default:
	}

	if depth == 0 || dead[0] || dead[1] {
		return s.leaf(state, mover, dead), rules.NoMove, nil
	}

	maximizing := mover == 0
	best := math.Inf(1)
	if maximizing {
		best = math.Inf(-1)
	}
	bestMove := rules.NoMove

	for _, m := range legal[mover] {
		score, err := s.child(ctx, state, depth, mover, m, legal, alpha, beta)
		if err != nil {
			return 0, rules.NoMove, err
		}

		if maximizing {
			if bestMove == rules.NoMove || score > best {
				best, bestMove = score, m
			}
			alpha = max(alpha, best)
		} else {
			if bestMove == rules.NoMove || score < best {
				best, bestMove = score, m
			}
			beta = min(beta, best)
		}

		if s.prune && beta <= alpha {
			break
		}
	}

	return best, bestMove, nil
}

// child advances mover by m and returns the value of the resulting position
// for mover's parent, including the neck penalty.
func (s *Searcher) child(ctx context.Context, state *game.GameState, depth, mover int, m rules.Move, legal [2][]rules.Move, alpha, beta float64) (float64, error) {
	other := 1 - mover
	next := rules.ApplyMove(state, mover, m)

	// The other snake has not moved, so its move set is carried over.
	var nextLegal [2][]rules.Move
	nextLegal[mover] = rules.LegalMoves(next, mover)
	nextLegal[other] = legal[other]
	nextDead := rules.DeadSnakes(next, nextLegal[:])

	// Penalty is subtracted for us and added for the opponent. The child
	// window is shifted by the same amount so pruning stays exact.
	penalty := 0.0
	if !nextDead[mover] && necksCollide(next) {
		penalty = s.cfg.NeckPenalty
	}
	if mover == 1 {
		penalty = -penalty
	}

	v, _, err := s.minimax(ctx, next, depth-1, other, nextLegal, nextDead, alpha+penalty, beta+penalty)
	if err != nil {
		return 0, err
	}
	return v - penalty, nil
}

// leaf scores a cutoff. Wins and losses are always judged for our snake; the
// graded score uses the snake whose turn it is unless RootedEvaluation is set.
func (s *Searcher) leaf(state *game.GameState, mover int, dead []bool) float64 {
	if dead[0] || dead[1] {
		return Evaluate(state, 0, dead, s.cfg)
	}
	if s.cfg.RootedEvaluation {
		mover = 0
	}
	return Evaluate(state, mover, dead, s.cfg)
}

func necksCollide(state *game.GameState) bool {
	a, b := state.Snakes[0].Body, state.Snakes[1].Body
	return len(a) > 1 && len(b) > 1 && a[1] == b[1]
}
