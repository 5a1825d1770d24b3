// Command scraper replays recorded leaderboard games through the engine and
// records, for every turn, what the engine would have played next to what was
// actually played.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/brensch/minisnek/logging"
	"github.com/brensch/minisnek/scraper/discovery"
	"github.com/brensch/minisnek/scraper/downloader"
	"github.com/brensch/minisnek/scraper/replay"
	"github.com/brensch/minisnek/search"
	"github.com/brensch/minisnek/store"
)

func main() {
	outDir := flag.String("out-dir", getEnvOrDefault("OUT_DIR", "data/replay"), "Directory to write decision parquet batches")
	logPath := flag.String("log-path", getEnvOrDefault("WRITTEN_LOG", "data/replay/written_games.log"), "Append-only log of game IDs already analysed")
	flushGames := flag.Int("flush-games", getEnvIntOrDefault("FLUSH_GAMES", 100), "Flush when this many games are buffered")
	flushEvery := flag.Duration("flush-every", getEnvDurationOrDefault("FLUSH_EVERY", 10*time.Minute), "Flush at this interval regardless of buffered count")
	maxPlayers := flag.Int("max-players", getEnvIntOrDefault("MAX_PLAYERS", 50), "Players to crawl per leaderboard")
	maxGames := flag.Int("max-games", getEnvIntOrDefault("MAX_GAMES", 0), "Stop after this many new games (0 = all discovered)")
	requestDelay := flag.Duration("delay", getEnvDurationOrDefault("DELAY", 500*time.Millisecond), "Delay between HTTP requests")
	downloaders := flag.Int("downloaders", getEnvIntOrDefault("DOWNLOADERS", 4), "Concurrent game downloads")
	searchConfig := flag.String("search-config", getEnvOrDefault("SEARCH_CONFIG", ""), "YAML file with search settings")
	moveBudget := flag.Duration("move-budget", getEnvDurationOrDefault("MOVE_BUDGET", 300*time.Millisecond), "Search time per replayed decision (0 = full depth)")
	snakeIDs := flag.String("snakes", getEnvOrDefault("SNAKES", ""), "Comma-separated snake IDs to analyse (empty = every snake)")
	logFormat := flag.String("log-format", getEnvOrDefault("LOG_FORMAT", "text"), "Log format: text, json or pretty")
	logLevel := flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	log, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := search.LoadConfig(*searchConfig)
	if err != nil {
		log.Error("load search config", "err", err)
		os.Exit(1)
	}

	written, err := store.OpenWrittenLog(*logPath)
	if err != nil {
		log.Error("open written log", "err", err)
		os.Exit(1)
	}
	defer written.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting replay analysis",
		"out_dir", *outDir,
		"already_written", written.Count(),
		"depth", cfg.Depth,
		"move_budget", *moveBudget,
	)

	discCfg := discovery.DefaultConfig()
	discCfg.MaxPlayers = *maxPlayers
	discCfg.MaxGames = *maxGames
	discCfg.RequestDelay = *requestDelay

	dlCfg := downloader.DefaultConfig()
	dlCfg.NumWorkers = *downloaders

	sink, err := newSink(*outDir, *flushGames, written, log)
	if err != nil {
		log.Error("open batch", "err", err)
		os.Exit(1)
	}

	if err := run(ctx, log, discCfg, dlCfg, replay.Options{
		Search:     cfg,
		MoveBudget: *moveBudget,
		SnakeIDs:   splitList(*snakeIDs),
		Seed:       time.Now().UnixNano(),
	}, sink, *flushEvery); err != nil && ctx.Err() == nil {
		log.Error("replay analysis failed", "err", err)
	}
	if err := sink.flush("final"); err != nil {
		log.Error("final flush", "err", err)
	}
	log.Info("replay analysis complete", "games", sink.games, "rows", sink.rows)
}

func run(ctx context.Context, log *slog.Logger, discCfg discovery.Config, dlCfg downloader.Config, opts replay.Options, sink *sink, flushEvery time.Duration) error {
	ids := make(chan string, 1000)
	disc := discovery.NewWorker(discCfg, sink.written.Snapshot(), log)
	go func() {
		defer close(ids)
		if err := disc.Discover(ctx, ids); err != nil && ctx.Err() == nil {
			log.Warn("discovery stopped", "err", err)
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(flushEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := sink.flush("ticker"); err != nil {
					log.Error("flush", "err", err)
				}
			}
		}
	}()

	pool := downloader.NewPool(dlCfg, log)
	err := pool.Run(ctx, ids, func(ctx context.Context, g *downloader.Game) error {
		rep, err := replay.Analyze(ctx, g, opts)
		if err != nil {
			return err
		}
		log.Info("game analysed",
			"game_id", g.ID,
			"winner", g.Winner(),
			"turns", len(g.Frames),
			"rows", len(rep.Rows),
			"skipped", rep.Skipped,
			"agreement", rep.Agreement(),
		)
		return sink.add(g.ID, rep.Rows)
	})
	st := pool.Stats()
	log.Info("downloads", "downloaded", st.Downloaded, "failed", st.Failed, "frames", st.Frames)
	return err
}

// sink buffers analysed games in one parquet batch and marks them written only
// once the batch is on disk.
type sink struct {
	outDir     string
	flushGames int
	written    *store.WrittenLog
	log        *slog.Logger

	mu      sync.Mutex
	batch   *store.BatchWriter
	pending []string
	games   int
	rows    int
}

func newSink(outDir string, flushGames int, written *store.WrittenLog, log *slog.Logger) (*sink, error) {
	bw, err := store.NewBatchWriter(outDir)
	if err != nil {
		return nil, err
	}
	return &sink{
		outDir:     outDir,
		flushGames: max(flushGames, 1),
		written:    written,
		log:        log,
		batch:      bw,
	}, nil
}

func (s *sink) add(gameID string, rows []store.DecisionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.batch.WriteGame(rows); err != nil {
		return err
	}
	s.pending = append(s.pending, gameID)
	if len(s.pending) >= s.flushGames {
		return s.flushLocked("count")
	}
	return nil
}

func (s *sink) flush(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(reason)
}

func (s *sink) flushLocked(reason string) error {
	if len(s.pending) == 0 {
		return nil
	}
	rows := s.batch.Rows()
	path, err := s.batch.Finalize()
	if err != nil {
		return err
	}
	if err := s.written.AddMany(s.pending...); err != nil {
		// The parquet file is already in place; a duplicate analysis later is harmless.
		s.log.Warn("written log append failed", "err", err)
	}
	s.log.Info("flushed batch", "reason", reason, "games", len(s.pending), "rows", rows, "path", path)
	s.games += len(s.pending)
	s.rows += rows
	s.pending = s.pending[:0]

	s.batch, err = store.NewBatchWriter(s.outDir)
	return err
}
