package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/brensch/minisnek/api"
	"github.com/brensch/minisnek/rules"
	"github.com/brensch/minisnek/search"
	"github.com/brensch/minisnek/store"
)

// Server answers the Battlesnake webhook API with search.Decide.
type Server struct {
	cfg         search.Config
	moveTimeout time.Duration
	latency     time.Duration
	minCompute  time.Duration
	log         *slog.Logger
	recorder    *store.Recorder // nil disables recording

	mu  sync.Mutex
	rng *rand.Rand
}

func NewServer(cfg search.Config, moveTimeout, latency time.Duration, log *slog.Logger, recorder *store.Recorder) *Server {
	return &Server{
		cfg:         cfg,
		moveTimeout: moveTimeout,
		latency:     latency,
		minCompute:  20 * time.Millisecond,
		log:         log,
		recorder:    recorder,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /move", s.handleMove)
	mux.HandleFunc("POST /end", s.handleEnd)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, api.BattlesnakeInfoResponse{
		APIVersion: "1",
		Author:     "minisnek",
		Color:      "#E9B63E",
		Head:       "fang",
		Tail:       "hook",
		Version:    "1.0.0",
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req api.GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info("game started", "game_id", req.Game.ID, "ruleset", req.Game.Ruleset.Name, "you", req.You.Name)
	w.WriteHeader(http.StatusOK)
}

// computeBudget is the time the search may use for one move.
func (s *Server) computeBudget(req *api.GameRequest) time.Duration {
	timeout := s.moveTimeout
	if req.Game.Timeout > 0 {
		timeout = time.Duration(req.Game.Timeout) * time.Millisecond
	}
	return max(timeout-s.latency, s.minCompute)
}

func (s *Server) seed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int63()
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req api.GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := api.ToGameState(&req)
	if err != nil {
		s.log.Warn("rejected snapshot", "game_id", req.Game.ID, "turn", req.Turn, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.computeBudget(&req))
	defer cancel()
	d := search.Decide(ctx, state, s.cfg, rand.New(rand.NewSource(s.seed())))

	s.log.Info("move",
		"game_id", req.Game.ID,
		"turn", req.Turn,
		"move", d.String(),
		"score", d.Result.Score,
		"depth", d.Result.Depth,
		"nodes", d.Result.Nodes,
		"fallback", d.Fallback,
		"elapsed", time.Since(start),
	)
	if s.recorder != nil {
		s.recorder.Record(store.NewDecisionRow(store.SourceServer, req.Game.ID, state, d))
	}

	writeJSON(w, api.MoveResponse{Move: rules.MoveToString(d.Move)})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req api.GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := "lost"
	for _, snake := range req.Board.Snakes {
		if snake.ID == req.You.ID {
			result = "won"
			break
		}
	}
	if len(req.Board.Snakes) == 0 {
		result = "draw"
	}

	s.log.Info("game ended", "game_id", req.Game.ID, "turn", req.Turn, "result", result)
	w.WriteHeader(http.StatusOK)
}
