package selfplay

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/minisnek/game"
	"github.com/brensch/minisnek/rules"
	"github.com/brensch/minisnek/store"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 7, 7
	cfg.MaxTurns = 150
	cfg.Search.Depth = 2
	return cfg
}

func TestPlayGame_Completes(t *testing.T) {
	cfg := smallConfig()
	var seen int
	res, err := PlayGame(context.Background(), cfg, rand.New(rand.NewSource(1)), func(s *game.GameState) {
		seen++
		if len(s.Snakes) > 0 {
			require.NoError(t, s.Validate(), "referee produced an invalid board at turn %d", s.Turn)
		}
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.GameID)
	assert.Positive(t, res.Turns)
	assert.Equal(t, res.Turns, seen)
	assert.LessOrEqual(t, res.Turns, cfg.MaxTurns)
	require.NotNil(t, res.Final)

	if res.WinnerId != "" {
		require.Len(t, res.Final.Snakes, 1)
		assert.Equal(t, res.WinnerId, res.Final.Snakes[0].Id)
	}

	// Two snakes decide on turn 0; later turns have at most two.
	require.GreaterOrEqual(t, len(res.Rows), res.Turns)
	for _, row := range res.Rows {
		assert.Equal(t, res.GameID, row.GameID)
		assert.Equal(t, store.SourceSelfPlay, row.Source)
		assert.Contains(t, []string{"up", "down", "left", "right"}, row.Move)
	}
	assert.Equal(t, int32(0), res.Rows[0].Turn)
}

func TestPlayGame_Reproducible(t *testing.T) {
	cfg := smallConfig()
	a, err := PlayGame(context.Background(), cfg, rand.New(rand.NewSource(5)), nil)
	require.NoError(t, err)
	b, err := PlayGame(context.Background(), cfg, rand.New(rand.NewSource(5)), nil)
	require.NoError(t, err)

	assert.Equal(t, a.Turns, b.Turns)
	assert.Equal(t, a.WinnerId, b.WinnerId)
	require.Len(t, b.Rows, len(a.Rows))
	for i := range a.Rows {
		assert.Equal(t, a.Rows[i].Move, b.Rows[i].Move, "row %d", i)
	}
}

func TestPlayGame_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := PlayGame(ctx, smallConfig(), rand.New(rand.NewSource(1)), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlayGame_RejectsSnakeCount(t *testing.T) {
	cfg := smallConfig()
	cfg.Snakes = 1
	_, err := PlayGame(context.Background(), cfg, nil, nil)
	assert.Error(t, err)

	cfg.Snakes = 5
	_, err = PlayGame(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestInitialState(t *testing.T) {
	cfg := smallConfig()
	cfg.Snakes = 4
	state, err := InitialState(cfg, rand.New(rand.NewSource(2)))
	require.NoError(t, err)
	require.NoError(t, state.Validate())

	assert.Len(t, state.Snakes, 4)
	heads := map[game.Point]bool{}
	for _, s := range state.Snakes {
		assert.Equal(t, rules.MaxHealth, s.Health)
		require.Len(t, s.Body, 3)
		heads[s.Head()] = true
	}
	assert.Len(t, heads, 4, "starts must be distinct")
	assert.GreaterOrEqual(t, len(state.Food), 1)

	cfg.Width = 3
	_, err = InitialState(cfg, rand.New(rand.NewSource(2)))
	assert.Error(t, err)
}

func TestRenderBoard(t *testing.T) {
	state := &game.GameState{
		Width:  4,
		Height: 3,
		Turn:   7,
		YouId:  "me",
		Snakes: []game.Snake{
			{Id: "me", Body: []game.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}},
			{Id: "them", Body: []game.Point{{X: 3, Y: 2}, {X: 3, Y: 1}}},
		},
		Food: []game.Point{{X: 0, Y: 2}},
	}
	want := "turn 7\n" +
		"F..S\n" +
		"...s\n" +
		"Oo..\n"
	assert.Equal(t, want, RenderBoard(state))
}
