// Command executor runs a local self-play arena: N workers play the engine
// against itself and every decision is recorded to parquet.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/minisnek/executor/selfplay"
	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/logging"
	"github.com/brensch/minisnek/search"
	"github.com/brensch/minisnek/store"
)

var (
	totalTurns atomic.Int64
	totalGames atomic.Int64
)

type GameUpdate struct {
	WorkerID int
	Result   selfplay.GameResult
}

type TickMsg time.Time

type model struct {
	gamesPlayed int
	decisions   int
	draws       int
	wins        map[string]int
	turns       int64
	startTime   time.Time
	recentGames []string
	board       string
	updates     <-chan GameUpdate
	boards      <-chan string
	cancel      context.CancelFunc
}

func initialModel(updates <-chan GameUpdate, boards <-chan string, cancel context.CancelFunc) model {
	return model{
		startTime: time.Now(),
		wins:      map[string]int{},
		updates:   updates,
		boards:    boards,
		cancel:    cancel,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates <-chan GameUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return tea.Quit()
		}
		return u
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
	case TickMsg:
		m.turns = totalTurns.Load()
		select {
		case b := <-m.boards:
			m.board = b
		default:
		}
		return m, tickCmd()
	case GameUpdate:
		m.gamesPlayed++
		m.decisions += len(msg.Result.Rows)
		winner := msg.Result.WinnerId
		if winner == "" {
			m.draws++
			winner = "draw"
		} else {
			m.wins[winner]++
		}
		line := fmt.Sprintf("worker %d: %s after %d turns (%s)", msg.WorkerID, winner, msg.Result.Turns, msg.Result.GameID)
		m.recentGames = append([]string{line}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	elapsed := time.Since(m.startTime)
	rate := func(n float64) float64 {
		if elapsed < time.Second {
			return 0
		}
		return n / elapsed.Seconds()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games Played: %d (draws %d)\n", m.gamesPlayed, m.draws)
	fmt.Fprintf(&sb, "Decisions:    %d\n", m.decisions)
	fmt.Fprintf(&sb, "Turns:        %d\n", m.turns)
	fmt.Fprintf(&sb, "Duration:     %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "Games/Sec:    %.2f\n", rate(float64(m.gamesPlayed)))
	fmt.Fprintf(&sb, "Turns/Sec:    %.2f\n\n", rate(float64(m.turns)))

	if m.board != "" {
		sb.WriteString(m.board)
		sb.WriteString("\n")
	}

	sb.WriteString("Recent Games:\n")
	for _, g := range m.recentGames {
		sb.WriteString(g + "\n")
	}
	sb.WriteString("\nPress q to quit.\n")
	return sb.String()
}

func main() {
	outDir := flag.String("out-dir", getEnvOrDefault("OUT_DIR", "data/selfplay"), "Directory for decision parquet batches")
	workers := flag.Int("workers", getEnvIntOrDefault("WORKERS", 4), "Number of self-play workers")
	maxGames := flag.Int64("max-games", int64(getEnvIntOrDefault("MAX_GAMES", 0)), "Stop after this many games across all workers (0 = run until interrupted)")
	flushRows := flag.Int("flush-rows", getEnvIntOrDefault("FLUSH_ROWS", 5000), "Flush a parquet batch once this many rows are buffered")
	flushEvery := flag.Duration("flush-every", getEnvDurationOrDefault("FLUSH_EVERY", time.Minute), "Flush buffered rows at this interval")
	searchConfig := flag.String("search-config", getEnvOrDefault("SEARCH_CONFIG", ""), "YAML file with search settings")
	depth := flag.Int("depth", 0, "Override search depth")
	moveTimeout := flag.Duration("move-timeout", getEnvDurationOrDefault("MOVE_TIMEOUT", 0), "Per-decision time limit (0 = full depth)")
	width := flag.Int("width", 11, "Board width")
	height := flag.Int("height", 11, "Board height")
	snakes := flag.Int("snakes", 2, "Snakes per game (2-4)")
	maxTurns := flag.Int("max-turns", 500, "Declare a draw after this many turns")
	useTUI := flag.Bool("tui", getEnvBoolOrDefault("TUI", true), "Show the live terminal UI")
	logFile := flag.String("log-file", getEnvOrDefault("LOG_FILE", "executor.log"), "Log destination while the TUI is running")
	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	// Logs go to a file while the TUI owns the terminal.
	var logOut io.Writer = os.Stderr
	if *useTUI {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log, err := logging.New(logOut, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := selfplay.DefaultConfig()
	cfg.Search, err = search.LoadConfig(*searchConfig)
	if err != nil {
		log.Error("load search config", "err", err)
		os.Exit(1)
	}
	if *depth > 0 {
		cfg.Search.Depth = *depth
	}
	cfg.Width, cfg.Height = int32(*width), int32(*height)
	cfg.Snakes = *snakes
	cfg.MaxTurns = *maxTurns
	cfg.MoveTimeout = *moveTimeout

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	rec := store.NewRecorder(*outDir, *flushRows, *flushEvery, log)

	log.Info("starting self-play",
		"workers", *workers,
		"out_dir", *outDir,
		"depth", cfg.Search.Depth,
		"board", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"snakes", cfg.Snakes,
	)

	updates := make(chan GameUpdate, *workers)
	boards := make(chan string, 1)

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runWorker(ctx, workerID, cfg, rec, log, *maxGames, cancel, updates, boards)
		}(i)
	}
	go func() {
		wg.Wait()
		close(updates)
	}()

	if *useTUI {
		p := tea.NewProgram(initialModel(updates, boards, cancel), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			log.Error("tui", "err", err)
		}
		cancel()
	} else {
		logUpdates(ctx, log, updates)
	}

	log.Info("shutdown requested; waiting for workers")
	wg.Wait()
	rec.Close()
	log.Info("shutdown complete", "games", totalGames.Load(), "batches", len(rec.Files()))
}

func runWorker(ctx context.Context, workerID int, cfg selfplay.Config, rec *store.Recorder, log *slog.Logger, maxGames int64, cancel context.CancelFunc, updates chan<- GameUpdate, boards chan<- string) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)*1000003))
	log = log.With("worker", workerID)

	onTurn := func(s *game.GameState) {
		totalTurns.Add(1)
		if workerID != 0 {
			return
		}
		// Worker 0 feeds the board preview; stale frames are dropped.
		select {
		case boards <- selfplay.RenderBoard(s):
		default:
		}
	}

	for ctx.Err() == nil {
		res, err := selfplay.PlayGame(ctx, cfg, rng, onTurn)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("game aborted", "err", err)
			}
			return
		}

		rec.Record(res.Rows...)
		total := totalGames.Add(1)
		log.Debug("game finished", "game_id", res.GameID, "winner", res.WinnerId, "turns", res.Turns, "total", total)
		if maxGames > 0 && total >= maxGames {
			cancel()
		}

		select {
		case updates <- GameUpdate{WorkerID: workerID, Result: res}:
		case <-ctx.Done():
			return
		}
	}
}

func logUpdates(ctx context.Context, log *slog.Logger, updates <-chan GameUpdate) {
	start := time.Now()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			log.Info("game finished", "worker", u.WorkerID, "game_id", u.Result.GameID, "winner", u.Result.WinnerId, "turns", u.Result.Turns)
		case <-ticker.C:
			secs := time.Since(start).Seconds()
			log.Info("stats",
				"games", totalGames.Load(),
				"turns_per_sec", float64(totalTurns.Load())/secs,
			)
		}
	}
}
