package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(t *testing.T, typ string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(GameEvent{Type: typ, Data: raw})
	require.NoError(t, err)
	return b
}

func frames() []FrameData {
	a := func(body ...Coord) SnakeData { return SnakeData{ID: "a", Name: "alpha", Health: 100, Body: body} }
	b := func(body ...Coord) SnakeData { return SnakeData{ID: "b", Name: "beta", Health: 100, Body: body} }
	return []FrameData{
		{Turn: 0, Snakes: []SnakeData{a(Coord{1, 1}, Coord{1, 1}, Coord{1, 1}), b(Coord{5, 5}, Coord{5, 5}, Coord{5, 5})}, Food: []Coord{{3, 3}}},
		{Turn: 1, Snakes: []SnakeData{a(Coord{1, 2}, Coord{1, 1}, Coord{1, 1}), b(Coord{5, 4}, Coord{5, 5}, Coord{5, 5})}, Food: []Coord{{3, 3}}},
		{Turn: 2, Snakes: []SnakeData{a(Coord{1, 3}, Coord{1, 2}, Coord{1, 1}), func() SnakeData {
			s := b(Coord{5, 3}, Coord{5, 4}, Coord{5, 5})
			s.Death = &Death{Cause: "snake-collision", Turn: 2}
			return s
		}()}, Food: []Coord{{3, 3}}},
	}
}

// newEngine serves game "good" in full and game "partial" without game_end
// before dropping the connection. Any other ID is a 404.
func newEngine(t *testing.T) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/games/"), "/events")
		if id != "good" && id != "partial" {
			http.NotFound(w, r)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		info := GameInfo{Game: GameDetails{ID: id, Width: 7, Height: 7}, Ruleset: RulesetInfo{Name: "standard"}}
		_ = conn.WriteMessage(websocket.TextMessage, event(t, "game_info", info))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		for _, f := range frames() {
			_ = conn.WriteMessage(websocket.TextMessage, event(t, "frame", f))
		}
		if id == "good" {
			_ = conn.WriteMessage(websocket.TextMessage, event(t, "game_end", map[string]any{}))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) Config {
	cfg := DefaultConfig()
	cfg.EngineURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/games/%s/events"
	cfg.ReadTimeout = 5 * time.Second
	cfg.NumWorkers = 2
	return cfg
}

func TestDownloadGame(t *testing.T) {
	srv := newEngine(t)

	for _, id := range []string{"good", "partial"} {
		g, err := DownloadGame(context.Background(), id, testConfig(srv))
		require.NoError(t, err, id)
		assert.Equal(t, id, g.ID)
		assert.Equal(t, 7, g.Width)
		assert.Equal(t, 7, g.Height)
		assert.Equal(t, "standard", g.Ruleset)
		require.Len(t, g.Frames, 3)
		assert.Equal(t, 2, g.Frames[2].Turn)
		assert.Equal(t, "alpha", g.Winner())
	}

	_, err := DownloadGame(context.Background(), "missing", testConfig(srv))
	assert.Error(t, err)
}

func TestSnakeAlive(t *testing.T) {
	f := frames()[2]
	assert.True(t, f.Snakes[0].Alive())
	assert.False(t, f.Snakes[1].Alive())
	assert.False(t, (&SnakeData{Health: 0, Body: []Coord{{1, 1}}}).Alive())
}

func TestWinner(t *testing.T) {
	assert.Equal(t, "unknown", (&Game{}).Winner())
	g := &Game{Frames: frames()[:1]}
	assert.Equal(t, "draw", g.Winner())
}

func TestPool(t *testing.T) {
	srv := newEngine(t)
	pool := NewPool(testConfig(srv), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ids := make(chan string, 3)
	ids <- "good"
	ids <- "missing"
	ids <- "partial"
	close(ids)

	var mu sync.Mutex
	var got []string
	err := pool.Run(context.Background(), ids, func(_ context.Context, g *Game) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, g.ID)
		return nil
	})
	require.NoError(t, err)

	sort.Strings(got)
	assert.Equal(t, []string{"good", "partial"}, got)
	assert.Equal(t, Stats{Downloaded: 2, Failed: 1, Frames: 6}, pool.Stats())
}

func TestPool_CallbackErrorStops(t *testing.T) {
	srv := newEngine(t)
	pool := NewPool(testConfig(srv), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ids := make(chan string, 1)
	ids <- "good"

	boom := errors.New("boom")
	err := pool.Run(context.Background(), ids, func(context.Context, *Game) error { return boom })
	assert.ErrorIs(t, err, boom)
}
