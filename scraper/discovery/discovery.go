// Package discovery finds recorded game IDs on the Battlesnake leaderboard
// pages.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "minisnek-replay/1.0 (decision-analysis)"

type Config struct {
	LeaderboardURLs []string      // leaderboards whose players are crawled
	RequestDelay    time.Duration // pause between player pages
	MaxPlayers      int           // players per leaderboard, 0 = all
	MaxGames        int           // stop after this many new IDs, 0 = no limit
}

func DefaultConfig() Config {
	return Config{
		LeaderboardURLs: []string{
			"https://play.battlesnake.com/leaderboard/standard-duels",
		},
		RequestDelay: 500 * time.Millisecond,
		MaxPlayers:   50,
	}
}

var (
	gameIDRe = regexp.MustCompile(`/game/([a-f0-9-]+)`)
	// /leaderboard/{arena}/{username}/stats
	playerRe = regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`)
)

// Worker crawls leaderboards for game IDs it has not seen before.
type Worker struct {
	cfg    Config
	client *http.Client
	known  map[string]bool
	log    *slog.Logger
}

// NewWorker takes ownership of known, which seeds the dedupe set.
func NewWorker(cfg Config, known map[string]bool, log *slog.Logger) *Worker {
	if known == nil {
		known = make(map[string]bool)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		known:  known,
		log:    log.With("component", "discovery"),
	}
}

// Discover sends every new game ID to out. It returns when all leaderboards are
// crawled, MaxGames is reached or ctx is done. Failing pages are logged and
// skipped. out is not closed.
func (w *Worker) Discover(ctx context.Context, out chan<- string) error {
	sent := 0
	for _, board := range w.cfg.LeaderboardURLs {
		players, err := w.leaderboardPlayers(ctx, board)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("leaderboard failed", "url", board, "err", err)
			continue
		}
		if w.cfg.MaxPlayers > 0 && len(players) > w.cfg.MaxPlayers {
			players = players[:w.cfg.MaxPlayers]
		}
		w.log.Info("leaderboard crawled", "url", board, "players", len(players))

		for i, statsURL := range players {
			if i > 0 && w.cfg.RequestDelay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(w.cfg.RequestDelay):
				}
			}

			ids, err := w.playerGames(ctx, statsURL)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Warn("player page failed", "url", statsURL, "err", err)
				continue
			}
			for _, id := range ids {
				if w.known[id] {
					continue
				}
				w.known[id] = true
				select {
				case out <- id:
				case <-ctx.Done():
					return ctx.Err()
				}
				sent++
				if w.cfg.MaxGames > 0 && sent >= w.cfg.MaxGames {
					return nil
				}
			}
		}
	}
	w.log.Info("discovery complete", "new_games", sent)
	return nil
}

func (w *Worker) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", pageURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// leaderboardPlayers returns absolute stats page URLs in page order.
func (w *Worker) leaderboardPlayers(ctx context.Context, boardURL string) ([]string, error) {
	base, err := url.Parse(boardURL)
	if err != nil {
		return nil, err
	}
	doc, err := w.fetch(ctx, boardURL)
	if err != nil {
		return nil, err
	}

	var players []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := playerRe.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[m[1]] = true
		players = append(players, base.ResolveReference(ref).String())
	})
	return players, nil
}

// playerGames returns the game IDs linked from a stats page in page order.
func (w *Worker) playerGames(ctx context.Context, statsURL string) ([]string, error) {
	doc, err := w.fetch(ctx, statsURL)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if m := gameIDRe.FindStringSubmatch(href); len(m) >= 2 && !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	})
	return ids, nil
}
