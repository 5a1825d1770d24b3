// Package downloader fetches recorded games from the Battlesnake engine's
// websocket event stream.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	NumWorkers     int
	EngineURL      string // fmt template taking the game ID
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		NumWorkers:     4,
		EngineURL:      "wss://engine.battlesnake.com/games/%s/events",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
	}
}

// GameEvent is one message of the event stream.
type GameEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GameInfo is the payload of the "game_info" event.
type GameInfo struct {
	Game    GameDetails `json:"game"`
	Ruleset RulesetInfo `json:"ruleset"`
}

type GameDetails struct {
	ID      string `json:"id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Timeout int    `json:"timeout"`
}

type RulesetInfo struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	Settings json.RawMessage `json:"settings"`
}

// FrameData is the payload of a "frame" event.
type FrameData struct {
	Turn   int         `json:"turn"`
	Snakes []SnakeData `json:"snakes"`
	Food   []Coord     `json:"food"`
	Board  BoardData   `json:"board,omitempty"`
}

type SnakeData struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Health int     `json:"health"`
	Body   []Coord `json:"body"`
	Author string  `json:"author,omitempty"`
	Death  *Death  `json:"death,omitempty"`
}

// Alive reports whether the snake was still playing in the frame.
func (s *SnakeData) Alive() bool {
	return s.Death == nil && s.Health > 0 && len(s.Body) > 0
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type BoardData struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Death struct {
	Cause string `json:"cause"`
	Turn  int    `json:"turn"`
}

// Game is a downloaded game with its frames in turn order.
type Game struct {
	ID      string
	Width   int
	Height  int
	Ruleset string
	Frames  []FrameData
}

// Winner names the only snake alive in the last frame, or "draw".
func (g *Game) Winner() string {
	if len(g.Frames) == 0 {
		return "unknown"
	}
	last := g.Frames[len(g.Frames)-1]
	var alive []string
	for i := range last.Snakes {
		if last.Snakes[i].Alive() {
			alive = append(alive, last.Snakes[i].Name)
		}
	}
	if len(alive) == 1 {
		return alive[0]
	}
	return "draw"
}

// DownloadGame reads a game's event stream until "game_end" or the server
// closes the connection. A stream that breaks after some frames were read
// still yields those frames.
func DownloadGame(ctx context.Context, gameID string, cfg Config) (*Game, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf(cfg.EngineURL, gameID), nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	g := &Game{ID: gameID}
	for {
		if cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || len(g.Frames) > 0 {
				break
			}
			return nil, fmt.Errorf("read: %w", err)
		}

		var ev GameEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "game_info":
			var info GameInfo
			if err := json.Unmarshal(ev.Data, &info); err == nil {
				g.Width, g.Height = info.Game.Width, info.Game.Height
				g.Ruleset = info.Ruleset.Name
			}
		case "frame":
			var f FrameData
			if err := json.Unmarshal(ev.Data, &f); err != nil {
				continue
			}
			g.Frames = append(g.Frames, f)
		case "game_end":
			return g.finish()
		}
	}
	return g.finish()
}

func (g *Game) finish() (*Game, error) {
	if len(g.Frames) == 0 {
		return nil, errors.New("no frames received")
	}
	if g.Width == 0 || g.Height == 0 {
		g.Width, g.Height = g.Frames[0].Board.Width, g.Frames[0].Board.Height
	}
	return g, nil
}

type Stats struct {
	Downloaded int64
	Failed     int64
	Frames     int64
}

// Pool downloads games concurrently.
type Pool struct {
	cfg   Config
	log   *slog.Logger
	stats struct {
		downloaded, failed, frames atomic.Int64
	}
}

func NewPool(cfg Config, log *slog.Logger) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{cfg: cfg, log: log.With("component", "downloader")}
}

// Run downloads every ID received on ids with NumWorkers workers and hands each
// game to fn. Download failures are logged and counted; an error from fn stops
// the pool and is returned.
func (p *Pool) Run(ctx context.Context, ids <-chan string, fn func(context.Context, *Game) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.NumWorkers; i++ {
		g.Go(func() error {
			for {
				var id string
				var ok bool
				select {
				case <-gctx.Done():
					return gctx.Err()
				case id, ok = <-ids:
					if !ok {
						return nil
					}
				}

				game, err := DownloadGame(gctx, id, p.cfg)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					p.stats.failed.Add(1)
					p.log.Warn("download failed", "game_id", id, "err", err)
					continue
				}
				p.stats.downloaded.Add(1)
				p.stats.frames.Add(int64(len(game.Frames)))
				if err := fn(gctx, game); err != nil {
					return fmt.Errorf("game %s: %w", id, err)
				}
			}
		})
	}
	return g.Wait()
}

func (p *Pool) Stats() Stats {
	return Stats{
		Downloaded: p.stats.downloaded.Load(),
		Failed:     p.stats.failed.Load(),
		Frames:     p.stats.frames.Load(),
	}
}
