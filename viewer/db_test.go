package main

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brensch/minisnek/store"
)

func decision(source, game, snake, move, actual, fallback string, depth int32, nodes int64, score float64) store.DecisionRow {
	return store.DecisionRow{
		GameID:    game,
		Source:    source,
		SnakeID:   snake,
		Width:     11,
		Height:    11,
		Snakes:    2,
		Move:      move,
		Actual:    actual,
		Fallback:  fallback,
		Depth:     depth,
		Nodes:     nodes,
		Score:     score,
		ElapsedUs: 100,
	}
}

func TestBuildReport(t *testing.T) {
	selfplay := t.TempDir()
	replay := t.TempDir()

	_, err := store.WriteBatchParquetAtomic(selfplay, []store.DecisionRow{
		decision(store.SourceSelfPlay, "g1", "a", "up", "", "", 4, 100, math.Inf(1)),
		decision(store.SourceSelfPlay, "g1", "b", "left", "", "random", 0, 0, 0),
		decision(store.SourceSelfPlay, "g2", "a", "down", "", "", 2, 50, math.Inf(-1)),
	})
	require.NoError(t, err)
	_, err = store.WriteBatchParquetAtomic(replay, []store.DecisionRow{
		decision(store.SourceReplay, "r1", "me", "up", "up", "", 4, 300, 1),
		decision(store.SourceReplay, "r1", "me", "left", "right", "", 4, 100, 0.5),
		decision(store.SourceReplay, "r1", "them", "down", "down", "", 2, 50, 2),
	})
	require.NoError(t, err)

	db, err := openDuckDB([]string{selfplay, replay})
	require.NoError(t, err)
	defer db.Close()

	rep, err := buildReport(context.Background(), db)
	require.NoError(t, err)

	require.Len(t, rep.Sources, 2)
	r, sp := rep.Sources[0], rep.Sources[1]
	assert.Equal(t, store.SourceReplay, r.Source)
	assert.Equal(t, store.SourceSelfPlay, sp.Source)

	assert.Equal(t, int64(2), sp.Games)
	assert.Equal(t, int64(3), sp.Decisions)
	assert.Equal(t, int64(1), sp.Random)
	assert.Equal(t, int64(0), sp.Default)
	assert.Equal(t, int64(1), sp.Wins)
	assert.Equal(t, int64(1), sp.Losses)
	assert.InDelta(t, 2.0, sp.AvgDepth, 1e-9)
	assert.InDelta(t, 50.0, sp.AvgNodes, 1e-9)
	assert.Equal(t, int64(0), sp.Compared)

	assert.Equal(t, int64(1), r.Games)
	assert.Equal(t, int64(3), r.Compared)
	assert.Equal(t, int64(2), r.Agreed)
	assert.InDelta(t, 2.0/3.0, r.Agreement(), 1e-9)

	assert.Equal(t, []SnakeAgreement{
		{SnakeID: "me", Compared: 2, Agreed: 1},
		{SnakeID: "them", Compared: 1, Agreed: 1},
	}, rep.Snakes)

	require.Len(t, rep.Depths, 3)
	for i, want := range []DepthBucket{
		{Depth: 0, Decisions: 1, AvgNodes: 0},
		{Depth: 2, Decisions: 2, AvgNodes: 50},
		{Depth: 4, Decisions: 3, AvgNodes: 500.0 / 3.0},
	} {
		got := rep.Depths[i]
		assert.Equal(t, want.Depth, got.Depth)
		assert.Equal(t, want.Decisions, got.Decisions)
		assert.InDelta(t, want.AvgNodes, got.AvgNodes, 1e-6)
	}

	var buf bytes.Buffer
	printReport(&buf, rep)
	assert.Contains(t, buf.String(), "66.7% of 3")
	assert.Contains(t, buf.String(), "them")
}

func TestBuildReport_NoData(t *testing.T) {
	db, err := openDuckDB([]string{t.TempDir(), ""})
	require.NoError(t, err)
	defer db.Close()

	rep, err := buildReport(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, rep.Sources)
	assert.Empty(t, rep.Snakes)
	assert.Empty(t, rep.Depths)
}

func TestParseDataRoots(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseDataRoots(" a, ,b,a "))
	assert.Empty(t, parseDataRoots(""))
}
