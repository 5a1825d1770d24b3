package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/minisnek/scraper/downloader"
	"github.com/brensch/minisnek/search"
	"github.com/brensch/minisnek/store"
)

func snake(id string, health int, body ...downloader.Coord) downloader.SnakeData {
	return downloader.SnakeData{ID: id, Name: id, Health: health, Body: body}
}

type c = downloader.Coord

func sampleGame() *downloader.Game {
	dead := snake("them", 98, c{X: 1, Y: 4}, c{X: 1, Y: 3}, c{X: 0, Y: 3})
	dead.Death = &downloader.Death{Cause: "eliminated", Turn: 2}
	return &downloader.Game{
		ID:     "g1",
		Width:  7,
		Height: 7,
		Frames: []downloader.FrameData{
			{Turn: 0, Snakes: []downloader.SnakeData{
				snake("me", 100, c{X: 1, Y: 0}, c{X: 2, Y: 0}, c{X: 3, Y: 0}),
				snake("them", 100, c{X: 0, Y: 3}, c{X: 0, Y: 2}, c{X: 0, Y: 1}),
			}},
			{Turn: 1, Snakes: []downloader.SnakeData{
				snake("me", 99, c{X: 1, Y: 1}, c{X: 1, Y: 0}, c{X: 2, Y: 0}),
				snake("them", 99, c{X: 1, Y: 3}, c{X: 0, Y: 3}, c{X: 0, Y: 2}),
			}},
			{Turn: 2, Snakes: []downloader.SnakeData{
				snake("me", 98, c{X: 2, Y: 1}, c{X: 1, Y: 1}, c{X: 1, Y: 0}),
				dead,
			}},
		},
	}
}

func opts() Options {
	o := Options{Search: search.DefaultConfig(), Seed: 1}
	o.Search.Depth = 2
	return o
}

func TestAnalyze(t *testing.T) {
	rep, err := Analyze(context.Background(), sampleGame(), opts())
	require.NoError(t, err)
	require.Len(t, rep.Rows, 4)
	assert.Zero(t, rep.Skipped)

	type pair struct{ snake, actual string }
	var got []pair
	for _, row := range rep.Rows {
		assert.Equal(t, store.SourceReplay, row.Source)
		assert.Equal(t, "g1", row.GameID)
		got = append(got, pair{row.SnakeID, row.Actual})
	}
	assert.Equal(t, []pair{{"me", "up"}, {"them", "right"}, {"me", "right"}, {"them", "up"}}, got)

	// Left walks into a dead end, so the engine agrees with the played move.
	assert.Equal(t, "up", rep.Rows[0].Move)
	assert.Equal(t, int32(0), rep.Rows[0].Turn)
	assert.Equal(t, int32(1), rep.Rows[2].Turn)
}

func TestAnalyze_FilterAndSkip(t *testing.T) {
	g := sampleGame()
	g.Frames[1].Food = []downloader.Coord{{X: 9, Y: 9}}

	o := opts()
	o.SnakeIDs = []string{"them"}
	rep, err := Analyze(context.Background(), g, o)
	require.NoError(t, err)

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "them", rep.Rows[0].SnakeID)
	assert.Equal(t, 1, rep.Skipped, "frame 1 is off the board")
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Analyze(ctx, sampleGame(), opts())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrameState_DropsDeadSnakes(t *testing.T) {
	g := sampleGame()
	state, err := FrameState(g, &g.Frames[2])
	require.NoError(t, err)
	require.Len(t, state.Snakes, 1)
	assert.Equal(t, "me", state.Snakes[0].Id)
	assert.Equal(t, int32(2), state.Turn)
}

func TestReport_Agreement(t *testing.T) {
	assert.Zero(t, Report{}.Agreement())
	rep := Report{Rows: []store.DecisionRow{
		{Move: "up", Actual: "up"},
		{Move: "left", Actual: "up"},
		{Move: "down", Actual: "down"},
		{Move: "up", Actual: "right"},
	}}
	assert.InDelta(t, 0.5, rep.Agreement(), 1e-9)
}
